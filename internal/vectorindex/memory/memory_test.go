package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/ragline/internal/pkg/errs"
	"github.com/xxxsen/ragline/internal/vectorindex"
)

func newStore(t *testing.T, dim int) *Store {
	st := NewStore()
	require.NoError(t, st.EnsureCollection(context.Background(), dim, vectorindex.DistanceCosine))
	return st
}

func pt(id string, vec []float32, payload map[string]interface{}) vectorindex.Point {
	return vectorindex.Point{ID: id, Vector: vec, Payload: payload}
}

func TestStoreEnsureCollectionIdempotent(t *testing.T) {
	st := newStore(t, 3)
	require.NoError(t, st.EnsureCollection(context.Background(), 3, vectorindex.DistanceCosine))

	err := st.EnsureCollection(context.Background(), 4, vectorindex.DistanceCosine)
	require.ErrorIs(t, err, errs.ErrIndexUnavailable)
	err = st.EnsureCollection(context.Background(), 3, vectorindex.DistanceDot)
	require.ErrorIs(t, err, errs.ErrIndexUnavailable)
}

func TestStoreUpsertIdempotentByID(t *testing.T) {
	st := newStore(t, 2)
	ctx := context.Background()
	require.NoError(t, st.Upsert(ctx, []vectorindex.Point{
		pt("a", []float32{1, 0}, map[string]interface{}{"content": "old"}),
	}))
	require.NoError(t, st.Upsert(ctx, []vectorindex.Point{
		pt("a", []float32{0, 1}, map[string]interface{}{"content": "new"}),
	}))

	hits, err := st.Search(ctx, []float32{0, 1}, vectorindex.SearchOptions{TopK: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "a", hits[0].ID)
	require.Equal(t, "new", hits[0].Payload["content"])
}

func TestStoreUpsertDimensionMismatch(t *testing.T) {
	st := newStore(t, 3)
	err := st.Upsert(context.Background(), []vectorindex.Point{
		pt("a", []float32{1, 0}, nil),
	})
	require.ErrorIs(t, err, errs.ErrIndexWrite)
}

func TestStoreSearchOrdering(t *testing.T) {
	st := newStore(t, 2)
	ctx := context.Background()
	require.NoError(t, st.Upsert(ctx, []vectorindex.Point{
		pt("far", []float32{0, 1}, nil),
		pt("near", []float32{1, 0}, nil),
		pt("mid", []float32{1, 1}, nil),
	}))

	hits, err := st.Search(ctx, []float32{1, 0}, vectorindex.SearchOptions{TopK: 3})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	require.Equal(t, "near", hits[0].ID)
	require.Equal(t, "mid", hits[1].ID)
	require.Equal(t, "far", hits[2].ID)
	for i := 1; i < len(hits); i++ {
		require.LessOrEqual(t, hits[i].Score, hits[i-1].Score)
	}
}

func TestStoreSearchTopKAndThreshold(t *testing.T) {
	st := newStore(t, 2)
	ctx := context.Background()
	require.NoError(t, st.Upsert(ctx, []vectorindex.Point{
		pt("a", []float32{1, 0}, nil),
		pt("b", []float32{1, 0.2}, nil),
		pt("c", []float32{0, 1}, nil),
	}))

	hits, err := st.Search(ctx, []float32{1, 0}, vectorindex.SearchOptions{TopK: 2})
	require.NoError(t, err)
	require.Len(t, hits, 2)

	threshold := float32(0.5)
	hits, err = st.Search(ctx, []float32{1, 0}, vectorindex.SearchOptions{TopK: 10, ScoreThreshold: &threshold})
	require.NoError(t, err)
	for _, h := range hits {
		require.GreaterOrEqual(t, h.Score, threshold)
		require.NotEqual(t, "c", h.ID)
	}
}

func TestStoreSearchFilter(t *testing.T) {
	st := newStore(t, 2)
	ctx := context.Background()
	require.NoError(t, st.Upsert(ctx, []vectorindex.Point{
		pt("a", []float32{1, 0}, map[string]interface{}{
			"document_id": "doc-1",
			"metadata":    map[string]interface{}{"chapter": "intro", "page": 3.0},
		}),
		pt("b", []float32{1, 0}, map[string]interface{}{
			"document_id": "doc-2",
			"metadata":    map[string]interface{}{"chapter": "advanced", "page": 42.0},
		}),
	}))

	hits, err := st.Search(ctx, []float32{1, 0}, vectorindex.SearchOptions{
		TopK: 10,
		Filter: &vectorindex.Filter{Must: []vectorindex.Condition{
			{Field: "document_id", Equals: "doc-1"},
		}},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "a", hits[0].ID)

	hits, err = st.Search(ctx, []float32{1, 0}, vectorindex.SearchOptions{
		TopK: 10,
		Filter: &vectorindex.Filter{Must: []vectorindex.Condition{
			{Field: "metadata.chapter", Equals: "advanced"},
		}},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "b", hits[0].ID)

	gte := 10.0
	hits, err = st.Search(ctx, []float32{1, 0}, vectorindex.SearchOptions{
		TopK: 10,
		Filter: &vectorindex.Filter{Must: []vectorindex.Condition{
			{Field: "metadata.page", GTE: &gte},
		}},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "b", hits[0].ID)

	hits, err = st.Search(ctx, []float32{1, 0}, vectorindex.SearchOptions{
		TopK: 10,
		Filter: &vectorindex.Filter{Must: []vectorindex.Condition{
			{Field: "metadata.missing", Equals: "x"},
		}},
	})
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestStoreDeleteByDocument(t *testing.T) {
	st := newStore(t, 2)
	ctx := context.Background()
	require.NoError(t, st.Upsert(ctx, []vectorindex.Point{
		pt("a", []float32{1, 0}, map[string]interface{}{"document_id": "doc-1"}),
		pt("b", []float32{0, 1}, map[string]interface{}{"document_id": "doc-1"}),
		pt("c", []float32{1, 1}, map[string]interface{}{"document_id": "doc-2"}),
	}))
	require.NoError(t, st.DeleteByDocument(ctx, "doc-1"))

	hits, err := st.Search(ctx, []float32{1, 0}, vectorindex.SearchOptions{TopK: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "c", hits[0].ID)
}

func TestStoreSearchBeforeEnsure(t *testing.T) {
	st := NewStore()
	_, err := st.Search(context.Background(), []float32{1, 0}, vectorindex.SearchOptions{TopK: 1})
	require.ErrorIs(t, err, errs.ErrIndexUnavailable)
}

func TestUnavailableIndex(t *testing.T) {
	var idx vectorindex.Index = vectorindex.Unavailable{}
	ctx := context.Background()
	require.ErrorIs(t, idx.EnsureCollection(ctx, 3, vectorindex.DistanceCosine), errs.ErrIndexUnavailable)
	require.ErrorIs(t, idx.Upsert(ctx, nil), errs.ErrIndexUnavailable)
	_, err := idx.Search(ctx, nil, vectorindex.SearchOptions{})
	require.ErrorIs(t, err, errs.ErrIndexUnavailable)
	require.ErrorIs(t, idx.DeleteByDocument(ctx, "doc"), errs.ErrIndexUnavailable)
}
