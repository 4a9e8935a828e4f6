package nlp

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	t.Parallel()

	if got := Cosine([]float64{1, 0}, []float64{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Fatalf("unexpected similarity for identical vectors: got %f want 1", got)
	}
	if got := Cosine([]float64{1, 0}, []float64{0, 1}); math.Abs(got) > 1e-9 {
		t.Fatalf("unexpected similarity for orthogonal vectors: got %f want 0", got)
	}
	if got := Cosine([]float64{3, 4}, []float64{6, 8}); math.Abs(got-1) > 1e-9 {
		t.Fatalf("unexpected similarity for scaled vectors: got %f want 1", got)
	}
}

func TestCosineDegenerateInputs(t *testing.T) {
	t.Parallel()

	if got := Cosine(nil, nil); got != 0 {
		t.Fatalf("unexpected similarity for empty vectors: got %f want 0", got)
	}
	if got := Cosine([]float64{1, 2}, []float64{1, 2, 3}); got != 0 {
		t.Fatalf("unexpected similarity for mismatched lengths: got %f want 0", got)
	}
	if got := Cosine([]float64{0, 0}, []float64{1, 1}); got != 0 {
		t.Fatalf("unexpected similarity for zero-norm vector: got %f want 0", got)
	}
}
