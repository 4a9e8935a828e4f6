package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"dalal.st/pulse/internal/auth"
	"dalal.st/pulse/internal/cli"
)

func runAPIKey(args []string) int {
	if len(args) == 0 {
		printAPIKeyUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "-h", "--help":
		printAPIKeyUsage()
		return 0
	case "create":
		return runAPIKeyCreate(args[1:])
	case "list":
		return runAPIKeyList(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown apikey action: %s\n\n", args[0])
		printAPIKeyUsage()
		return 2
	}
}

func runAPIKeyCreate(args []string) int {
	fs := flag.NewFlagSet("apikey create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	name := fs.String("name", "", "Human-readable key name")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "apikey create does not accept positional arguments")
		return 2
	}
	if strings.TrimSpace(*name) == "" {
		fmt.Fprintln(os.Stderr, "--name is required")
		return 2
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	key, err := auth.GenerateKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate key: %v\n", err)
		return 1
	}
	hash, err := auth.HashKey(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash key: %v\n", err)
		return 1
	}

	record, err := pool.CreateAPIKey(ctx, strings.TrimSpace(*name), hash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to store key: %v\n", err)
		return 1
	}

	fmt.Printf("id=%d name=%s created_at=%s\n", record.ID, record.Name, formatUTCTimestamp(record.CreatedAt))
	fmt.Printf("api_key=%s\n", key)
	fmt.Println("Store this key now; only its hash is kept.")
	return 0
}

func runAPIKeyList(args []string) int {
	fs := flag.NewFlagSet("apikey list", flag.ContinueOnError)
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
		fmt.Fprintln(os.Stderr, "apikey list does not accept positional arguments")
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

	keys, err := pool.ListAPIKeys(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query api keys: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(keys); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{
			fmt.Sprintf("%d", key.ID),
			key.Name,
			formatUTCTimestamp(key.CreatedAt),
			formatUTCTimestampPtr(key.LastUsedAt),
		})
	}

	if err := writeTable([]string{"id", "name", "created_at", "last_used_at"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}

func printAPIKeyUsage() {
	fmt.Fprintln(os.Stderr, "pulse apikey")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  pulse apikey <action> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Actions:")
	fmt.Fprintln(os.Stderr, "  create   Generate a key, store its hash, and print the key once")
	fmt.Fprintln(os.Stderr, "  list     List stored keys without their hashes")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Create flags:")
	fmt.Fprintln(os.Stderr, "  --name <name>   Key name (required)")
}
