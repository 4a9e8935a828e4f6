package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultModelName      = "all-MiniLM-L6-v2"
	DefaultBatchSize      = 32
	DefaultMaxLength      = 512
	DefaultRequestTimeout = 45 * time.Second
)

// Options configures the HTTP model-service client. BaseURL is the service
// root; /embed and /ner are derived from it unless the URL already carries an
// explicit path.
type Options struct {
	BaseURL        string
	ModelName      string
	BatchSize      int
	MaxLength      int
	RequestTimeout time.Duration
}

// Client talks to a sidecar model service exposing embedding and NER
// endpoints. It implements both Embedder and Recognizer.
type Client struct {
	opts       Options
	embedURL   string
	nerURL     string
	httpClient *http.Client
	logger     zerolog.Logger
}

type embedRequest struct {
	Texts     []string `json:"texts,omitempty"`
	Input     []string `json:"input,omitempty"`
	Model     string   `json:"model,omitempty"`
	MaxLength int      `json:"max_length,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Data       []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

type recognizeRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

type recognizeResponse struct {
	Entities []Span `json:"entities"`
}

// NewClient builds a Client for the given service. An empty BaseURL returns
// nil: callers treat a nil client as an unavailable capability and degrade.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil
	}

	normalized := normalizeOptions(opts)
	return &Client{
		opts:       normalized,
		embedURL:   serviceEndpoint(normalized.BaseURL, "/embed"),
		nerURL:     serviceEndpoint(normalized.BaseURL, "/ner"),
		httpClient: &http.Client{},
		logger:     logger,
	}
}

func normalizeOptions(opts Options) Options {
	normalized := opts
	normalized.BaseURL = strings.TrimSpace(normalized.BaseURL)
	if strings.TrimSpace(normalized.ModelName) == "" {
		normalized.ModelName = DefaultModelName
	}
	if normalized.BatchSize <= 0 {
		normalized.BatchSize = DefaultBatchSize
	}
	if normalized.MaxLength <= 0 {
		normalized.MaxLength = DefaultMaxLength
	}
	if normalized.RequestTimeout <= 0 {
		normalized.RequestTimeout = DefaultRequestTimeout
	}
	return normalized
}

// EmbedTexts embeds texts in batches and returns vectors index-aligned with
// the input. Both the plain {"texts": ...} shape and the OpenAI-style
// {"input": ...} shape are supported on the wire.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	if c == nil {
		return nil, fmt.Errorf("embedding capability is not configured")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += c.opts.BatchSize {
		end := min(start+c.opts.BatchSize, len(texts))

		batch, err := c.requestEmbeddings(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedding response count mismatch: requested=%d returned=%d", end-start, len(batch))
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

func (c *Client) requestEmbeddings(ctx context.Context, texts []string) ([][]float64, error) {
	payload := embedRequest{
		Texts:     texts,
		MaxLength: c.opts.MaxLength,
	}
	if parsed, err := url.Parse(c.embedURL); err == nil && strings.HasSuffix(parsed.Path, "/v1/embeddings") {
		payload = embedRequest{
			Input: texts,
			Model: c.opts.ModelName,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	respBody, err := c.post(ctx, c.embedURL, body)
	if err != nil {
		return nil, err
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}

	vectors := parsed.Embeddings
	if len(vectors) == 0 && len(parsed.Data) > 0 {
		sort.Slice(parsed.Data, func(i, j int) bool {
			return parsed.Data[i].Index < parsed.Data[j].Index
		})
		vectors = make([][]float64, 0, len(parsed.Data))
		for _, row := range parsed.Data {
			vectors = append(vectors, row.Embedding)
		}
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding response missing vectors")
	}

	return vectors, nil
}

// Recognize tags entity spans in one text.
func (c *Client) Recognize(ctx context.Context, text string) ([]Span, error) {
	if c == nil {
		return nil, fmt.Errorf("ner capability is not configured")
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	body, err := json.Marshal(recognizeRequest{Text: text, Model: c.opts.ModelName})
	if err != nil {
		return nil, fmt.Errorf("marshal ner request: %w", err)
	}

	respBody, err := c.post(ctx, c.nerURL, body)
	if err != nil {
		return nil, err
	}

	var parsed recognizeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode ner response: %w", err)
	}

	return parsed.Entities, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	requestCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build model service request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model service request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read model service response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("model service status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return respBody, nil
}

// serviceEndpoint appends defaultPath to a bare base URL; a URL that already
// names a path is kept verbatim so operators can point straight at an
// OpenAI-compatible /v1/embeddings route.
func serviceEndpoint(base, defaultPath string) string {
	parsed, err := url.Parse(base)
	if err != nil {
		return base
	}
	if parsed.Path == "" || parsed.Path == "/" {
		parsed.Path = defaultPath
	}
	return parsed.String()
}
