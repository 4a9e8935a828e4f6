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

	"golang.org/x/sync/errgroup"

	"dalal.st/pulse/internal/cli"
	"dalal.st/pulse/internal/config"
	"dalal.st/pulse/internal/db"
	"dalal.st/pulse/internal/dedup"
	"dalal.st/pulse/internal/extract"
	"dalal.st/pulse/internal/httpapi"
	"dalal.st/pulse/internal/impact"
	"dalal.st/pulse/internal/ingest"
	"dalal.st/pulse/internal/logging"
	"dalal.st/pulse/internal/pipeline"
	"dalal.st/pulse/internal/query"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 8090, "HTTP port")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 30*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	analyzeInterval := fs.Duration("analyze-interval", time.Minute, "How often pending articles are analyzed")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}
	if *analyzeInterval < time.Second {
		fmt.Fprintln(os.Stderr, "--analyze-interval must be at least 1s")
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
		logger.Error().Err(err).Msg("serve failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	tables, err := loadStockTables(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("serve failed to load stock tables")
		fmt.Fprintf(os.Stderr, "Failed to load stock tables: %v\n", err)
		return 1
	}

	embedder, recognizer := modelCapabilities(cfg, logger)
	deduper := dedup.NewEngine(embedder, cfg.SimilarityThreshold, logger)
	extractor := extract.NewExtractor(recognizer, logger)
	manager := pipeline.NewManager(
		pool,
		pipeline.NewService(deduper, extractor, impact.NewMapper(tables, logger), logger),
		cfg.BatchSize,
		logger,
	)
	queries := query.NewEngine(extractor, embedder, tables, cfg.QueryThreshold, logger)
	ingestor := ingest.NewService(pool, ingest.ServiceOptions{}, logger)

	srv := httpapi.NewServer(pool, pool, ingestor, queries, deduper, logger, httpapi.Options{
		Host:               *host,
		Port:               *port,
		ReadTimeout:        *readTimeout,
		WriteTimeout:       *writeTimeout,
		ShutdownTimeout:    *shutdownTimeout,
		RequireAPIKey:      cfg.RequireAPIKey,
		CORSAllowedOrigins: cfg.CORSAllowedOriginsList(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return manager.Run(gctx, *analyzeInterval)
	})
	g.Go(func() error {
		return srv.Start(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}
