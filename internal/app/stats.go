package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"dalal.st/pulse/internal/cli"
)

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "stats does not accept positional arguments")
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

	stats, err := pool.QueryPipelineStats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query pipeline stats: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(stats); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := [][]string{
		{"articles_total", fmt.Sprintf("%d", stats.Articles.Total)},
		{"articles_pending", fmt.Sprintf("%d", stats.Articles.Pending)},
		{"articles_processed", fmt.Sprintf("%d", stats.Articles.Processed)},
		{"articles_duplicates", fmt.Sprintf("%d", stats.Articles.Duplicates)},
		{"stories", fmt.Sprintf("%d", stats.Stories)},
		{"entities", fmt.Sprintf("%d", stats.Entities)},
		{"impacts_total", fmt.Sprintf("%d", stats.Impacts.TotalImpacts)},
		{"impacts_direct", fmt.Sprintf("%d", stats.Impacts.DirectImpacts)},
		{"impacts_sector", fmt.Sprintf("%d", stats.Impacts.SectorImpacts)},
		{"impacts_regulatory", fmt.Sprintf("%d", stats.Impacts.RegulatoryImpacts)},
		{"high_confidence", fmt.Sprintf("%d", stats.Impacts.HighConfidence)},
		{"medium_confidence", fmt.Sprintf("%d", stats.Impacts.MediumConfidence)},
		{"low_confidence", fmt.Sprintf("%d", stats.Impacts.LowConfidence)},
		{"last_run_at", formatUTCTimestampPtr(stats.LastRunAt)},
	}

	if err := writeTable([]string{"metric", "value"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render stats table: %v\n", err)
		return 1
	}

	return 0
}
