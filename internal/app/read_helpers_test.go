package app

import (
	"testing"
	"time"
)

func TestParseOutputFormat(t *testing.T) {
	t.Parallel()

	if got, err := parseOutputFormat(" JSON ", outputFormatTable); err != nil || got != outputFormatJSON {
		t.Fatalf("unexpected format: got %q err %v", got, err)
	}
	if got, err := parseOutputFormat("", outputFormatTable); err != nil || got != outputFormatTable {
		t.Fatalf("expected default format for blank input: got %q err %v", got, err)
	}
	if got, err := parseOutputFormat("table", outputFormatJSON); err != nil || got != outputFormatTable {
		t.Fatalf("unexpected format: got %q err %v", got, err)
	}
	if _, err := parseOutputFormat("yaml", outputFormatTable); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestTruncateForTable(t *testing.T) {
	t.Parallel()

	if got := truncateForTable("  short  ", 20); got != "short" {
		t.Fatalf("unexpected trimmed value: %q", got)
	}
	if got := truncateForTable("abcdefghij", 8); got != "abcde..." {
		t.Fatalf("unexpected truncated value: %q", got)
	}
	if got := truncateForTable("abcdefghij", 0); got != "abcdefghij" {
		t.Fatalf("expected no truncation for zero limit, got %q", got)
	}
	if got := truncateForTable("ab", 2); got != "ab" {
		t.Fatalf("unexpected short value: %q", got)
	}
	if got := truncateForTable("abcdef", 3); got != "abc" {
		t.Fatalf("expected hard cut below suffix width, got %q", got)
	}
	if got := truncateForTable("日本語のニュース記事", 6); got != "日本語..." {
		t.Fatalf("expected rune-aware truncation, got %q", got)
	}
}

func TestPointerStringOrEmpty(t *testing.T) {
	t.Parallel()

	if got := pointerStringOrEmpty(nil); got != "" {
		t.Fatalf("expected empty string for nil pointer, got %q", got)
	}
	value := "  padded  "
	if got := pointerStringOrEmpty(&value); got != "padded" {
		t.Fatalf("unexpected trimmed value: %q", got)
	}
}

func TestFormatUTCTimestamp(t *testing.T) {
	t.Parallel()

	if got := formatUTCTimestamp(time.Time{}); got != "" {
		t.Fatalf("expected empty string for zero time, got %q", got)
	}

	loc := time.FixedZone("IST", 5*3600+1800)
	stamp := time.Date(2024, 3, 15, 14, 30, 0, 0, loc)
	if got := formatUTCTimestamp(stamp); got != "2024-03-15T09:00:00Z" {
		t.Fatalf("unexpected UTC timestamp: %q", got)
	}

	if got := formatUTCTimestampPtr(nil); got != "" {
		t.Fatalf("expected empty string for nil timestamp, got %q", got)
	}
	if got := formatUTCTimestampPtr(&stamp); got != "2024-03-15T09:00:00Z" {
		t.Fatalf("unexpected UTC timestamp: %q", got)
	}
}
