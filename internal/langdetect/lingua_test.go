package langdetect

import "testing"

func TestNormalizeCode(t *testing.T) {
	t.Parallel()

	if got := NormalizeCode(" EN-us "); got != "en" {
		t.Fatalf("unexpected normalized code: %q", got)
	}
	if got := NormalizeCode("hi_IN"); got != "hi" {
		t.Fatalf("unexpected normalized code: %q", got)
	}
	if got := NormalizeCode("-ta-"); got != "ta" {
		t.Fatalf("unexpected trimmed code: %q", got)
	}
	if got := NormalizeCode("en123"); got != "" {
		t.Fatalf("expected malformed tag to normalize to empty string, got %q", got)
	}
	if got := NormalizeCode("  "); got != "" {
		t.Fatalf("expected empty code for blank input, got %q", got)
	}
}
