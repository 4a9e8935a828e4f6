package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dalal.st/pulse/internal/cli"
	"dalal.st/pulse/internal/dedup"
	"dalal.st/pulse/internal/extract"
	"dalal.st/pulse/internal/impact"
	"dalal.st/pulse/internal/ingest"
	"dalal.st/pulse/internal/news"
	"dalal.st/pulse/internal/nlp"
	"dalal.st/pulse/internal/pipeline"
	"dalal.st/pulse/internal/query"
	"dalal.st/pulse/internal/stockmap"
)

// Canned demo queries, one per intent family.
var demoQueryTexts = []string{
	"HDFC Bank news",
	"Banking sector update",
	"RBI policy changes",
	"Interest rate impact",
}

// runDemo walks the whole pipeline over the embedded sample set without
// touching a database: duplicate grouping, entity extraction with impact
// mapping, and the canned queries above.
func runDemo(args []string) int {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	modelURL := fs.String("model-url", "", "Model service URL (default PULSE_MODEL_SERVICE_URL)")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "demo does not accept positional arguments")
		return 2
	}

	// The env file is consulted only for the model service URL; the demo
	// needs no database.
	if envLoader != nil {
		_, _ = envLoader.Load()
	}

	baseURL := strings.TrimSpace(*modelURL)
	if baseURL == "" {
		baseURL = strings.TrimSpace(os.Getenv("PULSE_MODEL_SERVICE_URL"))
	}

	articles, err := ingest.SampleArticles()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load sample dataset: %v\n", err)
		return 1
	}
	if len(articles) == 0 {
		fmt.Fprintln(os.Stderr, "Sample dataset is empty")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logger := zerolog.Nop()
	var embedder nlp.Embedder
	var recognizer nlp.Recognizer
	if client := nlp.NewClient(nlp.Options{BaseURL: baseURL}, logger); client != nil {
		embedder = client
		recognizer = client
	}

	tables := stockmap.New()
	deduper := dedup.NewEngine(embedder, 0, logger)
	extractor := extract.NewExtractor(recognizer, logger)
	mapper := impact.NewMapper(tables, logger)

	result := pipeline.NewService(deduper, extractor, mapper, logger).ProcessBatch(ctx, articles)

	demoDeduplication(articles, result)
	demoExtraction(ctx, extractor, mapper, articles[0])
	demoQuerySystem(ctx, query.NewEngine(extractor, embedder, tables, 0, logger), articles, result.Impacts)

	if embedder == nil {
		fmt.Println()
		fmt.Println("Note: no model service is configured, so every article counts as its own story.")
		fmt.Println("Set PULSE_MODEL_SERVICE_URL or --model-url to see semantic grouping.")
	}
	return 0
}

func printDemoHeading(title string) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()
}

func demoDeduplication(articles []news.Article, result pipeline.Result) {
	printDemoHeading("DEMO 1: Intelligent Deduplication")

	fmt.Printf("Total articles processed: %d\n", len(articles))
	fmt.Printf("Unique stories identified: %d\n", len(result.Stories))

	titleByRepresentative := make(map[string]string, len(result.Stories))
	for _, story := range result.Stories {
		if len(story.ArticleIDs) > 0 {
			titleByRepresentative[story.ArticleIDs[0]] = story.ConsolidatedTitle
		}
	}

	fmt.Println("\nDuplicate groups found:")
	shown := 0
	for _, group := range result.Groups {
		if len(group.ArticleIDs) < 2 {
			continue
		}
		if shown == 5 {
			break
		}
		shown++
		fmt.Printf("\n  Representative: %s\n", group.RepresentativeID)
		fmt.Printf("  Members: %s\n", strings.Join(group.ArticleIDs, ", "))
		if title, ok := titleByRepresentative[group.RepresentativeID]; ok {
			fmt.Printf("  Consolidated title: %s\n", truncateForTable(title, 80))
		}
	}
	if shown == 0 {
		fmt.Println("  none")
	}
}

func demoExtraction(ctx context.Context, extractor *extract.Extractor, mapper *impact.Mapper, article news.Article) {
	printDemoHeading("DEMO 2: Entity Extraction & Impact Mapping")

	fmt.Printf("Sample article: %s\n", article.Title)
	fmt.Printf("Content: %s\n", truncateForTable(article.Content, 200))

	set := extractor.Extract(ctx, article.Content, article.Title)
	fmt.Println("\nExtracted entities:")
	for _, category := range set.Categories() {
		if len(category.Entities) == 0 {
			continue
		}
		fmt.Printf("  %s:\n", category.Name)
		for _, entity := range category.Entities {
			fmt.Printf("    - %s (confidence: %.2f)\n", entity.Name, entity.Confidence)
		}
	}

	fmt.Println("\nStock impacts:")
	impacts := mapper.MapEntities(set)
	if len(impacts) == 0 {
		fmt.Println("  none")
		return
	}
	for _, item := range impacts {
		fmt.Printf("  - %s: %.2f (%s)\n", item.Symbol, item.Confidence, item.ImpactType)
		fmt.Printf("    Reasoning: %s\n", item.Reasoning)
	}
}

func demoQuerySystem(ctx context.Context, engine *query.Engine, articles []news.Article, impacts map[string][]news.StockImpact) {
	printDemoHeading("DEMO 3: Context-Aware Query System")

	for _, text := range demoQueryTexts {
		result := engine.Process(ctx, text, articles, impacts)

		fmt.Printf("\nQuery: %q\n", text)
		fmt.Printf("Intent: %s\n", result.Intent)
		fmt.Printf("Found %d relevant articles\n", result.Count)
		for i, article := range result.Articles {
			if i == 3 {
				break
			}
			fmt.Printf("  - %s\n", truncateForTable(article.Title, 70))
		}
	}
}
