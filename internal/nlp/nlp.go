package nlp

import "context"

// Span is one labelled region the recognizer found in a text.
type Span struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Recognizer labels: the subset the pipeline routes on.
const (
	LabelOrganization = "ORG"
	LabelPerson       = "PERSON"
)

// Embedder turns a batch of texts into fixed-length vectors. The result is
// index-aligned with the input. Callers embed each distinct text once per
// batch run; the call may be slow or fail, and every caller must degrade
// rather than abort when it does.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float64, error)
}

// Recognizer tags organization and person spans in free text. A nil
// Recognizer means the capability is unavailable and extraction runs its
// pattern passes only.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]Span, error)
}
