package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/ragline/internal/ai"
	"github.com/xxxsen/ragline/internal/model"
	"github.com/xxxsen/ragline/internal/pkg/errs"
	"github.com/xxxsen/ragline/internal/vectorindex"
	"go.uber.org/zap"
)

type Retriever struct {
	embedder  ai.IEmbedder
	index     vectorindex.Index
	topK      int
	threshold float32
}

func New(embedder ai.IEmbedder, index vectorindex.Index, topK int, threshold float32) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	if index == nil {
		index = vectorindex.Unavailable{}
	}
	return &Retriever{embedder: embedder, index: index, topK: topK, threshold: threshold}
}

// Search embeds the query and returns the closest chunks, best first.
// Filters constrain payload fields: string values match exactly, numeric
// values match as a closed range on metadata fields.
func (r *Retriever) Search(ctx context.Context, query string, topK int, filters map[string]interface{}) ([]model.RetrievalResult, error) {
	if topK <= 0 {
		topK = r.topK
	}
	vectors, err := r.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", errs.ErrRetrieval, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for one query", errs.ErrRetrieval, len(vectors))
	}

	opts := vectorindex.SearchOptions{
		TopK:   topK,
		Filter: buildFilter(filters),
	}
	threshold := r.threshold
	opts.ScoreThreshold = &threshold

	hits, err := r.index.Search(ctx, vectors[0], opts)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	results := make([]model.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, toResult(hit))
	}
	logutil.GetLogger(ctx).Info("retrieved chunks",
		zap.Int("count", len(results)), zap.String("query", clip(query, 50)))
	return results, nil
}

// RelevantContext joins the top matches into one prompt block. Zero matches
// yield an empty context; a failing backend is an error, never an empty
// context.
func (r *Retriever) RelevantContext(ctx context.Context, query string, topK int) (string, error) {
	results, err := r.Search(ctx, query, topK, nil)
	if err != nil {
		return "", fmt.Errorf("retrieve context: %w", err)
	}
	parts := make([]string, 0, len(results))
	for _, res := range results {
		if strings.TrimSpace(res.Content) == "" {
			continue
		}
		title := "Unknown"
		if v, ok := res.Metadata["title"].(string); ok && v != "" {
			title = v
		}
		parts = append(parts, fmt.Sprintf("Source: %s\n%s", title, res.Content))
	}
	return strings.Join(parts, "\n\n"), nil
}

func buildFilter(filters map[string]interface{}) *vectorindex.Filter {
	if len(filters) == 0 {
		return nil
	}
	var must []vectorindex.Condition
	for key, value := range filters {
		switch v := value.(type) {
		case string:
			must = append(must, vectorindex.Condition{Field: "metadata." + key, Equals: v})
		case int:
			f := float64(v)
			must = append(must, vectorindex.Condition{Field: "metadata." + key, GTE: &f, LTE: &f})
		case float64:
			f := v
			must = append(must, vectorindex.Condition{Field: "metadata." + key, GTE: &f, LTE: &f})
		}
	}
	if len(must) == 0 {
		return nil
	}
	return &vectorindex.Filter{Must: must}
}

func toResult(hit vectorindex.ScoredPoint) model.RetrievalResult {
	res := model.RetrievalResult{
		ID:    hit.ID,
		Score: hit.Score,
	}
	if v, ok := hit.Payload["content"].(string); ok {
		res.Content = v
	}
	if v, ok := hit.Payload["document_id"].(string); ok {
		res.DocumentID = v
	}
	if v, ok := hit.Payload["metadata"].(map[string]interface{}); ok {
		res.Metadata = v
	}
	switch v := hit.Payload["chunk_index"].(type) {
	case int:
		res.ChunkIndex = v
	case float64:
		res.ChunkIndex = int(v)
	}
	return res
}

func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
