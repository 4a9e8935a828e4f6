package httpapi

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"dalal.st/pulse/internal/schema"
)

// handleIngest accepts a JSON array of articles, validates it against the
// embedded schema, and queues the batch as pending work for the next
// pipeline pass.
func (s *Server) handleIngest(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return failValidation(c, map[string]string{"body": "could not read request body"})
	}

	articles, err := schema.DecodeArticles(body)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	saved, err := s.ingestor.IngestSubmitted(c.Request().Context(), articles)
	if err != nil {
		s.logger.Error().Err(err).Int("articles", len(articles)).Msg("ingest failed")
		return internalError(c, "Failed to ingest articles")
	}

	return successWithStatus(c, http.StatusAccepted, map[string]any{
		"message": fmt.Sprintf("Processing %d articles", len(articles)),
		"queued":  saved,
	})
}
