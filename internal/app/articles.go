package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"dalal.st/pulse/internal/cli"
	"dalal.st/pulse/internal/db"
)

func runArticles(args []string) int {
	fs := flag.NewFlagSet("articles", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	status := fs.String("status", "", "Filter by status: pending or processed")
	source := fs.String("source", "", "Filter by source")
	limit := fs.Int("limit", 50, "Maximum articles to return")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "articles does not accept positional arguments")
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		return 2
	}

	statusFilter := strings.TrimSpace(strings.ToLower(*status))
	switch statusFilter {
	case "", db.ArticleStatusPending, db.ArticleStatusProcessed:
	default:
		fmt.Fprintln(os.Stderr, "--status must be pending or processed")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	articles, err := pool.ListArticles(ctx, db.ArticleListOptions{
		Status: statusFilter,
		Source: strings.TrimSpace(*source),
		Limit:  *limit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query articles: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(articles); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(articles))
	for _, article := range articles {
		duplicate := ""
		if article.IsDuplicate {
			duplicate = "dup of " + pointerStringOrEmpty(article.DuplicateOfArticleID)
		}
		rows = append(rows, []string{
			article.ArticleID,
			truncateForTable(article.Title, 80),
			article.Source,
			article.Status,
			duplicate,
			formatUTCTimestampPtr(article.PublishedAt),
		})
	}

	if err := writeTable(
		[]string{"id", "title", "source", "status", "duplicate", "published_at"},
		rows,
	); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}

	return 0
}
