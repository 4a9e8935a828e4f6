package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "migrate":
		return runMigrate(args[1:])
	case "serve":
		return runServe(args[1:])
	case "daemon":
		return runDaemon(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "analyze":
		return runAnalyze(args[1:])
	case "worker":
		return runWorker(args[1:])
	case "query":
		return runQuery(args[1:])
	case "demo":
		return runDemo(args[1:])
	case "apikey":
		return runAPIKey(args[1:])
	case "articles":
		return runArticles(args[1:])
	case "stories":
		return runStories(args[1:])
	case "story":
		return runStoryDetail(args[1:])
	case "stats":
		return runStats(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "pulse CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  pulse <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health    Check database and model service connectivity")
	fmt.Fprintln(os.Stderr, "  migrate   Apply the database schema")
	fmt.Fprintln(os.Stderr, "  serve     Start the HTTP API with a background analysis loop")
	fmt.Fprintln(os.Stderr, "  daemon    Poll feeds and analyze on an interval, without HTTP")
	fmt.Fprintln(os.Stderr, "  ingest    Store articles from a file, the sample set, or RSS feeds")
	fmt.Fprintln(os.Stderr, "  analyze   Run analysis passes over pending articles")
	fmt.Fprintln(os.Stderr, "  worker    Consume article payloads from the queue")
	fmt.Fprintln(os.Stderr, "  query     Answer one free-text query from stored articles")
	fmt.Fprintln(os.Stderr, "  demo      Walk the pipeline over the sample set, in memory")
	fmt.Fprintln(os.Stderr, "  apikey    Create and list API keys")
	fmt.Fprintln(os.Stderr, "  articles  List stored articles")
	fmt.Fprintln(os.Stderr, "  stories   List consolidated stories")
	fmt.Fprintln(os.Stderr, "  story     Show one story with its member articles")
	fmt.Fprintln(os.Stderr, "  stats     Show pipeline volumes and the impact summary")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"pulse <command> -h\" for command-specific flags.")
}
