package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"dalal.st/pulse/internal/cli"
	"dalal.st/pulse/internal/config"
	"dalal.st/pulse/internal/db"
	"dalal.st/pulse/internal/ingest"
	"dalal.st/pulse/internal/logging"
)

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	pollInterval := fs.Duration("poll-interval", 0, "How often feeds are polled (default PULSE_POLL_INTERVAL)")
	analyzeInterval := fs.Duration("analyze-interval", time.Minute, "How often pending articles are analyzed")
	noFeeds := fs.Bool("no-feeds", false, "Skip feed polling and only run analysis passes")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon does not accept positional arguments")
		return 2
	}
	if *analyzeInterval < time.Second {
		fmt.Fprintln(os.Stderr, "--analyze-interval must be at least 1s")
		return 2
	}
	if *pollInterval != 0 && *pollInterval < time.Second {
		fmt.Fprintln(os.Stderr, "--poll-interval must be at least 1s")
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

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("daemon failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	manager, err := buildManager(cfg, pool, logger)
	if err != nil {
		logger.Error().Err(err).Msg("daemon failed to assemble pipeline")
		fmt.Fprintf(os.Stderr, "Failed to assemble pipeline: %v\n", err)
		return 1
	}

	feedInterval := *pollInterval
	if feedInterval <= 0 {
		feedInterval = cfg.PollInterval
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return manager.Run(gctx, *analyzeInterval)
	})

	if !*noFeeds {
		fetcher, err := buildFetcher(cfg, logger)
		if err != nil {
			logger.Error().Err(err).Msg("daemon failed to configure feeds")
			fmt.Fprintf(os.Stderr, "Failed to configure feeds: %v\n", err)
			return 1
		}
		svc := ingest.NewService(pool, ingest.ServiceOptions{Fetcher: fetcher}, logger)
		g.Go(func() error {
			return pollFeedsLoop(gctx, svc, feedInterval, logger)
		})
	}

	logger.Info().
		Dur("poll_interval", feedInterval).
		Dur("analyze_interval", *analyzeInterval).
		Bool("feeds", !*noFeeds).
		Msg("daemon started")

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("daemon failed")
		fmt.Fprintf(os.Stderr, "Daemon failed: %v\n", err)
		return 1
	}

	return 0
}

// pollFeedsLoop polls feeds immediately and then on every tick until the
// context is cancelled. A failing poll is logged, not fatal.
func pollFeedsLoop(ctx context.Context, svc *ingest.Service, interval time.Duration, logger zerolog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := svc.PollFeeds(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("feed poll failed")
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("feed poller stopping")
			return nil
		case <-ticker.C:
		}
	}
}
