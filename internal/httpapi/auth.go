package httpapi

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"dalal.st/pulse/internal/auth"
	"dalal.st/pulse/internal/globaltime"
)

// apiKeyHeader carries the plaintext key on guarded requests.
const apiKeyHeader = "X-API-Key"

// requireAPIKey guards mutating endpoints. Unless RequireAPIKey is set the
// guard stays open while no keys exist, so a fresh local setup works before
// any key has been created.
func (s *Server) requireAPIKey() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c == nil {
				return unauthorizedResponse(c)
			}
			ctx := c.Request().Context()

			if !s.opts.RequireAPIKey {
				count, err := s.keys.CountAPIKeys(ctx)
				if err != nil {
					s.logger.Error().Err(err).Msg("api key count failed")
					return internalError(c, "Failed to authorize request")
				}
				if count == 0 {
					return next(c)
				}
			}

			key := strings.TrimSpace(c.Request().Header.Get(apiKeyHeader))
			if key == "" {
				return unauthorizedResponse(c)
			}

			if id, ok := s.keyCache.Load(key); ok {
				_ = s.keys.TouchAPIKey(ctx, id.(int64), globaltime.UTC())
				return next(c)
			}

			rows, err := s.keys.ListAPIKeys(ctx)
			if err != nil {
				s.logger.Error().Err(err).Msg("api key lookup failed")
				return internalError(c, "Failed to authorize request")
			}
			for _, row := range rows {
				if auth.VerifyKey(key, row.KeyHash) {
					s.keyCache.Store(key, row.ID)
					_ = s.keys.TouchAPIKey(ctx, row.ID, globaltime.UTC())
					return next(c)
				}
			}

			return unauthorizedResponse(c)
		}
	}
}

func unauthorizedResponse(c echo.Context) error {
	if c == nil {
		return fmt.Errorf("api key required")
	}
	return failUnauthorized(c, "A valid API key is required")
}
