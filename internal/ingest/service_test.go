package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/ragline/internal/chunker"
	"github.com/xxxsen/ragline/internal/pkg/errs"
	"github.com/xxxsen/ragline/internal/repo"
	"github.com/xxxsen/ragline/internal/vectorindex"
	"github.com/xxxsen/ragline/internal/vectorindex/memory"
	"github.com/xxxsen/ragline/test/testutil"
)

type hashEmbedder struct{}

func (hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), float32(len(texts) - i)}
	}
	return out, nil
}

func (hashEmbedder) Dimension() int    { return 2 }
func (hashEmbedder) ModelName() string { return "hash" }

func newService(t *testing.T) (*Service, *memory.Store, func()) {
	conn, cleanup := testutil.OpenTestDB(t)
	st := memory.NewStore()
	require.NoError(t, st.EnsureCollection(context.Background(), 2, vectorindex.DistanceCosine))
	svc := New(chunker.NewSplitter(100, 0), hashEmbedder{}, st, repo.NewDocumentRepo(conn))
	return svc, st, cleanup
}

func TestProcessDocument(t *testing.T) {
	svc, st, cleanup := newService(t)
	defer cleanup()
	ctx := context.Background()

	content := strings.Repeat("One sentence here. ", 20)
	report, err := svc.ProcessDocument(ctx, &Request{
		Title:    "Chapter One",
		Content:  content,
		Metadata: map[string]string{"subject": "robotics"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, report.DocumentID)
	require.Greater(t, report.ChunksProcessed, 1)
	require.Equal(t, "success", report.Status)

	hits, err := st.Search(ctx, []float32{1, 0}, vectorindex.SearchOptions{TopK: 100})
	require.NoError(t, err)
	require.Len(t, hits, report.ChunksProcessed)
	first := hits[0]
	require.Equal(t, report.DocumentID, first.Payload["document_id"])
	require.Equal(t, report.ChunksProcessed, asInt(t, first.Payload["total_chunks"]))
	meta := first.Payload["metadata"].(map[string]interface{})
	require.Equal(t, "Chapter One", meta["title"])
	require.Equal(t, "robotics", meta["subject"])

	stored, err := svc.docs.GetByID(ctx, report.DocumentID)
	require.NoError(t, err)
	require.Equal(t, "Chapter One", stored.Title)
	require.Equal(t, report.ChunksProcessed, stored.ChunkCount)
	require.Equal(t, HashContent(content), stored.ContentHash)
}

func TestProcessDocumentReingestReplacesChunks(t *testing.T) {
	svc, st, cleanup := newService(t)
	defer cleanup()
	ctx := context.Background()

	first, err := svc.ProcessDocument(ctx, &Request{Title: "Doc", Content: strings.Repeat("Alpha beta. ", 30)})
	require.NoError(t, err)

	second, err := svc.ProcessDocument(ctx, &Request{
		ID:      first.DocumentID,
		Title:   "Doc",
		Content: "Short now.",
	})
	require.NoError(t, err)
	require.Equal(t, first.DocumentID, second.DocumentID)
	require.Equal(t, 1, second.ChunksProcessed)

	hits, err := st.Search(ctx, []float32{1, 0}, vectorindex.SearchOptions{TopK: 100})
	require.NoError(t, err)
	require.Len(t, hits, 1)

	stored, err := svc.docs.GetByID(ctx, first.DocumentID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.ChunkCount)
}

func TestProcessDocumentEmptyContent(t *testing.T) {
	svc, _, cleanup := newService(t)
	defer cleanup()
	_, err := svc.ProcessDocument(context.Background(), &Request{Title: "T", Content: "   "})
	require.ErrorIs(t, err, errs.ErrChunking)
}

func TestProcessDocumentIndexUnavailable(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	svc := New(chunker.NewSplitter(100, 0), hashEmbedder{}, vectorindex.Unavailable{}, repo.NewDocumentRepo(conn))

	_, err := svc.ProcessDocument(context.Background(), &Request{Title: "T", Content: "Some content."})
	require.ErrorIs(t, err, errs.ErrIndexUnavailable)
}

func TestDeleteDocument(t *testing.T) {
	svc, st, cleanup := newService(t)
	defer cleanup()
	ctx := context.Background()

	report, err := svc.ProcessDocument(ctx, &Request{Title: "Doc", Content: "Some content here."})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteDocument(ctx, report.DocumentID))

	hits, err := st.Search(ctx, []float32{1, 0}, vectorindex.SearchOptions{TopK: 100})
	require.NoError(t, err)
	require.Empty(t, hits)

	_, err = svc.docs.GetByID(ctx, report.DocumentID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func asInt(t *testing.T, v interface{}) int {
	t.Helper()
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	t.Fatalf("unexpected numeric type %T", v)
	return 0
}
