package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"dalal.st/pulse/internal/cli"
	"dalal.st/pulse/internal/config"
	"dalal.st/pulse/internal/db"
	"dalal.st/pulse/internal/logging"
	"dalal.st/pulse/internal/nlp"
)

// runHealth checks the two dependencies pulse runs on: the database and the
// optional model service. The model service is probed through its embedding
// endpoint so the check exercises the same call path the pipeline uses.
func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Second, "Per-check timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("database health check failed")
		fmt.Fprintf(os.Stderr, "fail: database: %v\n", err)
		return 1
	}
	defer pool.Close()
	fmt.Println("ok: database reachable")

	if strings.TrimSpace(cfg.ModelServiceURL) == "" {
		fmt.Println("skip: no model service configured; dedup and NER run degraded")
		logger.Info().Msg("health check passed, database only")
		return 0
	}

	client := nlp.NewClient(nlp.Options{
		BaseURL:        cfg.ModelServiceURL,
		RequestTimeout: *timeout,
	}, logger)

	probeCtx, cancelProbe := context.WithTimeout(context.Background(), *timeout)
	defer cancelProbe()
	if _, err := client.EmbedTexts(probeCtx, []string{"health probe"}); err != nil {
		logger.Error().Err(err).Str("url", cfg.ModelServiceURL).Msg("model service health check failed")
		fmt.Fprintf(os.Stderr, "fail: model service: %v\n", err)
		return 1
	}
	fmt.Println("ok: model service reachable")

	logger.Info().Dur("timeout", *timeout).Msg("health check passed")
	return 0
}
