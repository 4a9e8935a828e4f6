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
	"dalal.st/pulse/internal/news"
)

func runQuery(args []string) int {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	limit := fs.Int("limit", 10, "Maximum articles to print in table output")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	queryText := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if queryText == "" {
		fmt.Fprintln(os.Stderr, "Usage: pulse query <text> [--format table|json]")
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

	engine, err := buildQueryEngine(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("query failed to assemble engine")
		fmt.Fprintf(os.Stderr, "Failed to assemble query engine: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("query failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	articles, err := pool.ListAnalyzedArticles(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("query failed to load articles")
		fmt.Fprintf(os.Stderr, "Failed to load articles: %v\n", err)
		return 1
	}
	impactIndex, err := pool.ImpactIndex(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("query failed to load impact index")
		fmt.Fprintf(os.Stderr, "Failed to load impact index: %v\n", err)
		return 1
	}

	result := engine.Process(ctx, queryText, articles, impactIndex)

	if outputFormat == outputFormatJSON {
		if err := printJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	if err := writeQueryResult(result, *limit); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}

func writeQueryResult(result news.QueryResult, limit int) error {
	fmt.Printf("query: %s\n", result.Query)
	fmt.Printf("intent: %s\n", result.Intent)
	for _, category := range result.Entities.Categories() {
		if len(category.Entities) == 0 {
			continue
		}
		names := make([]string, 0, len(category.Entities))
		for _, entity := range category.Entities {
			names = append(names, entity.Name)
		}
		fmt.Printf("%s: %s\n", category.Name, strings.Join(names, ", "))
	}
	fmt.Printf("matches: %d\n", result.Count)

	if len(result.Articles) == 0 {
		return nil
	}

	fmt.Println()
	rows := make([][]string, 0, min(limit, len(result.Articles)))
	for i, article := range result.Articles {
		if i == limit {
			break
		}
		rows = append(rows, []string{
			article.ID,
			truncateForTable(article.Title, 80),
			article.Source,
			formatUTCTimestampPtr(article.PublishedAt),
		})
	}
	return writeTable([]string{"id", "title", "source", "published_at"}, rows)
}
