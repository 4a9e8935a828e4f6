package nlp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewClientEmptyBaseURL(t *testing.T) {
	t.Parallel()

	if client := NewClient(Options{}, zerolog.Nop()); client != nil {
		t.Fatalf("expected nil client for empty base URL")
	}
}

func TestServiceEndpoint(t *testing.T) {
	t.Parallel()

	if got := serviceEndpoint("http://127.0.0.1:8844", "/embed"); got != "http://127.0.0.1:8844/embed" {
		t.Fatalf("unexpected endpoint derivation: %q", got)
	}
	if got := serviceEndpoint("http://127.0.0.1:8844/v1/embeddings", "/embed"); got != "http://127.0.0.1:8844/v1/embeddings" {
		t.Fatalf("unexpected endpoint derivation for explicit path: %q", got)
	}
}

func TestEmbedTextsPlainFormat(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Texts) != 2 {
			t.Errorf("unexpected batch size: got %d want 2", len(req.Texts))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float64{{1, 0, 0}, {0, 1, 0}},
		})
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL}, zerolog.Nop())
	vectors, err := client.EmbedTexts(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("embed texts: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("unexpected vector count: got %d want 2", len(vectors))
	}
	if vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Fatalf("vectors not aligned with input order: %v", vectors)
	}
}

func TestEmbedTextsOpenAIFormat(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Input) != 2 || len(req.Texts) != 0 {
			t.Errorf("expected input field for /v1/embeddings, got %+v", req)
		}
		// Out-of-order rows must be re-sorted by index.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float64{0, 1}},
				{"index": 0, "embedding": []float64{1, 0}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL + "/v1/embeddings"}, zerolog.Nop())
	vectors, err := client.EmbedTexts(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("embed texts: %v", err)
	}
	if vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Fatalf("data rows not re-sorted by index: %v", vectors)
	}
}

func TestEmbedTextsBatching(t *testing.T) {
	t.Parallel()

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req embedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		vectors := make([][]float64, len(req.Texts))
		for i := range vectors {
			vectors[i] = []float64{float64(i)}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vectors})
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL, BatchSize: 2}, zerolog.Nop())
	vectors, err := client.EmbedTexts(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("embed texts: %v", err)
	}
	if len(vectors) != 5 {
		t.Fatalf("unexpected vector count: got %d want 5", len(vectors))
	}
	if calls != 3 {
		t.Fatalf("unexpected batch count: got %d want 3", calls)
	}
}

func TestEmbedTextsServiceError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL}, zerolog.Nop())
	if _, err := client.EmbedTexts(context.Background(), []string{"alpha"}); err == nil {
		t.Fatalf("expected error for service failure")
	}
}

func TestRecognize(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ner" {
			t.Errorf("unexpected path: %q", r.URL.Path)
		}
		var req recognizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"entities": []map[string]string{
				{"text": "HDFC Bank", "label": "ORG"},
				{"text": "Sanjay Mehta", "label": "PERSON"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL}, zerolog.Nop())
	spans, err := client.Recognize(context.Background(), "HDFC Bank CEO Sanjay Mehta said...")
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if len(spans) != 2 {
		t.Fatalf("unexpected span count: got %d want 2", len(spans))
	}
	if spans[0].Text != "HDFC Bank" || spans[0].Label != LabelOrganization {
		t.Fatalf("unexpected first span: %+v", spans[0])
	}
}

func TestRecognizeEmptyText(t *testing.T) {
	t.Parallel()

	client := NewClient(Options{BaseURL: "http://127.0.0.1:1"}, zerolog.Nop())
	spans, err := client.Recognize(context.Background(), "   ")
	if err != nil {
		t.Fatalf("recognize blank text: %v", err)
	}
	if len(spans) != 0 {
		t.Fatalf("expected no spans for blank text, got %d", len(spans))
	}
}
