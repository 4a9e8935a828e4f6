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
	"dalal.st/pulse/internal/ingest"
	"dalal.st/pulse/internal/logging"
)

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 60*time.Second, "Command timeout")
	filePath := fs.String("file", "", "Path to a JSON file holding an article array")
	mock := fs.Bool("mock", false, "Store the embedded sample dataset")
	rss := fs.Bool("rss", false, "Poll the configured RSS feeds once")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "ingest does not accept positional arguments")
		return 2
	}

	sources := 0
	if strings.TrimSpace(*filePath) != "" {
		sources++
	}
	if *mock {
		sources++
	}
	if *rss {
		sources++
	}
	if sources != 1 {
		fmt.Fprintln(os.Stderr, "exactly one of --file, --mock, or --rss is required")
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

	var opts ingest.ServiceOptions
	if *rss {
		fetcher, err := buildFetcher(cfg, logger)
		if err != nil {
			logger.Error().Err(err).Msg("ingest failed to configure feeds")
			fmt.Fprintf(os.Stderr, "Failed to configure feeds: %v\n", err)
			return 1
		}
		opts.Fetcher = fetcher
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("ingest failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	svc := ingest.NewService(pool, opts, logger)

	var saved int
	switch {
	case *mock:
		saved, err = svc.IngestSample(ctx)
	case *rss:
		saved, err = svc.PollFeeds(ctx)
	default:
		saved, err = svc.IngestFile(ctx, strings.TrimSpace(*filePath))
	}
	if err != nil {
		logger.Error().Err(err).Msg("ingest failed")
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		return 1
	}

	fmt.Printf("ingest saved=%d\n", saved)
	return 0
}
