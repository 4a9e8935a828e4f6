package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"dalal.st/pulse/internal/cli"
	"dalal.st/pulse/internal/config"
	"dalal.st/pulse/internal/db"
	"dalal.st/pulse/internal/logging"
	"dalal.st/pulse/internal/pipeline"
)

func runAnalyze(args []string) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	batchSize := fs.Int("batch-size", 0, "Articles claimed per pass (default PULSE_BATCH_SIZE)")
	untilEmpty := fs.Bool("until-empty", true, "Repeat passes until no pending work remains")
	maxPasses := fs.Int("max-passes", 25, "Maximum passes when --until-empty=true")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "analyze does not accept positional arguments")
		return 2
	}
	if *batchSize < 0 {
		fmt.Fprintln(os.Stderr, "--batch-size must be >= 0")
		return 2
	}
	if *maxPasses <= 0 {
		fmt.Fprintln(os.Stderr, "--max-passes must be > 0")
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
	if *batchSize > 0 {
		cfg.BatchSize = *batchSize
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
		logger.Error().Err(err).Msg("analyze failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	manager, err := buildManager(cfg, pool, logger)
	if err != nil {
		logger.Error().Err(err).Msg("analyze failed to assemble pipeline")
		fmt.Fprintf(os.Stderr, "Failed to assemble pipeline: %v\n", err)
		return 1
	}

	total := pipeline.RunReport{}
	passes := 0
	drained := false

	for pass := 1; pass <= *maxPasses; pass++ {
		report, err := manager.RunOnce(ctx, pipeline.TriggerManual)
		if err != nil {
			logger.Error().Err(err).Int("pass", pass).Msg("analysis pass failed")
			fmt.Fprintf(os.Stderr, "Analyze failed during pass %d: %v\n", pass, err)
			return 1
		}

		passes = pass
		total.ArticlesClaimed += report.ArticlesClaimed
		total.ArticlesProcessed += report.ArticlesProcessed
		total.Skipped += report.Skipped
		total.StoriesCreated += report.StoriesCreated
		total.DuplicatesFound += report.DuplicatesFound
		total.EntitiesExtracted += report.EntitiesExtracted
		total.ImpactsMapped += report.ImpactsMapped

		if report.ArticlesClaimed == 0 {
			drained = true
			break
		}

		fmt.Printf(
			"pass=%d run_uuid=%s processed=%d skipped=%d stories=%d duplicates=%d entities=%d impacts=%d\n",
			pass,
			report.RunUUID,
			report.ArticlesProcessed,
			report.Skipped,
			report.StoriesCreated,
			report.DuplicatesFound,
			report.EntitiesExtracted,
			report.ImpactsMapped,
		)

		if !*untilEmpty {
			break
		}
	}

	logger.Info().
		Int("passes", passes).
		Bool("drained", drained).
		Int("articles_processed", total.ArticlesProcessed).
		Int("stories_created", total.StoriesCreated).
		Int("duplicates_found", total.DuplicatesFound).
		Int("entities_extracted", total.EntitiesExtracted).
		Int("impacts_mapped", total.ImpactsMapped).
		Msg("analyze completed")

	fmt.Printf(
		"analyze_total passes=%d drained=%t processed=%d skipped=%d stories=%d duplicates=%d entities=%d impacts=%d\n",
		passes,
		drained,
		total.ArticlesProcessed,
		total.Skipped,
		total.StoriesCreated,
		total.DuplicatesFound,
		total.EntitiesExtracted,
		total.ImpactsMapped,
	)

	if *untilEmpty && !drained {
		fmt.Fprintf(
			os.Stderr,
			"Analyze stopped after max passes (%d) before draining the queue; rerun with higher --max-passes or --batch-size\n",
			*maxPasses,
		)
		return 1
	}
	return 0
}
