// Package logging builds the process logger: console output for local runs,
// JSON lines everywhere else.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger. Commands construct it once and hand copies to
// their collaborators; a blank level means info.
func New(environment, level string) (zerolog.Logger, error) {
	parsedLevel := zerolog.InfoLevel
	if trimmed := strings.ToLower(strings.TrimSpace(level)); trimmed != "" {
		var err error
		parsedLevel, err = zerolog.ParseLevel(trimmed)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("parse LOG_LEVEL=%q: %w", level, err)
		}
	}

	logger := zerolog.New(writerFor(environment)).
		Level(parsedLevel).
		With().
		Timestamp().
		Str("service", "pulse").
		Logger()

	return logger, nil
}

func writerFor(environment string) io.Writer {
	if strings.EqualFold(strings.TrimSpace(environment), "local") {
		return zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}
	return os.Stdout
}
