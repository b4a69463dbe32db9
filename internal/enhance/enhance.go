package enhance

import (
	"context"
)

// RankedDocument is one rerank hit; Index points into the input slice.
type RankedDocument struct {
	Index    int
	Document string
	Score    float64
}

// Enhancer post-processes answers and retrieval results. Implementations are
// best-effort collaborators: callers fall back to their input when a call
// fails, so an Enhancer should return errors rather than degrade silently.
type Enhancer interface {
	Summarize(ctx context.Context, text string) (string, error)
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RankedDocument, error)
}

// Noop passes everything through unchanged. It stands in when no enhancer is
// configured so callers never branch on nil.
type Noop struct{}

func (Noop) Summarize(ctx context.Context, text string) (string, error) {
	return text, nil
}

func (Noop) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RankedDocument, error) {
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}
	out := make([]RankedDocument, 0, topN)
	for i := 0; i < topN; i++ {
		out = append(out, RankedDocument{Index: i, Document: documents[i], Score: 1.0 - float64(i)*0.1})
	}
	return out, nil
}
