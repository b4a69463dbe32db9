package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/ragline/internal/ai"
	"github.com/xxxsen/ragline/internal/enhance"
	"github.com/xxxsen/ragline/internal/model"
	"github.com/xxxsen/ragline/internal/pkg/errs"
	"github.com/xxxsen/ragline/internal/retrieval"
	"github.com/xxxsen/ragline/internal/vectorindex"
	"github.com/xxxsen/ragline/internal/vectorindex/memory"
)

type stubGenerator struct {
	response string
	err      error
	messages []ai.Message
}

func (s *stubGenerator) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	s.messages = append([]ai.Message(nil), messages...)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

type stubEmbedder struct {
	vector []float32
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int    { return len(s.vector) }
func (s *stubEmbedder) ModelName() string { return "stub" }

type failingEnhancer struct{}

func (failingEnhancer) Summarize(ctx context.Context, text string) (string, error) {
	return "", errors.New("enhancer down")
}

func (failingEnhancer) Rerank(ctx context.Context, query string, documents []string, topN int) ([]enhance.RankedDocument, error) {
	return nil, errors.New("enhancer down")
}

type reversingEnhancer struct{}

func (reversingEnhancer) Summarize(ctx context.Context, text string) (string, error) {
	return text, nil
}

func (reversingEnhancer) Rerank(ctx context.Context, query string, documents []string, topN int) ([]enhance.RankedDocument, error) {
	out := make([]enhance.RankedDocument, 0, topN)
	for i := len(documents) - 1; i >= 0 && len(out) < topN; i-- {
		out = append(out, enhance.RankedDocument{
			Index:    i,
			Document: documents[i],
			Score:    0.9 - 0.1*float64(len(out)),
		})
	}
	return out, nil
}

func twoChunkRetriever(t *testing.T) *retrieval.Retriever {
	st := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, st.EnsureCollection(ctx, 2, vectorindex.DistanceCosine))
	require.NoError(t, st.Upsert(ctx, []vectorindex.Point{
		{ID: "p1", Vector: []float32{1, 0}, Payload: map[string]interface{}{
			"content":     "alpha one",
			"document_id": "doc-1",
			"chunk_index": 0.0,
			"metadata":    map[string]interface{}{"title": "Chapter One"},
		}},
		{ID: "p2", Vector: []float32{0.9, 0.3}, Payload: map[string]interface{}{
			"content":     "alpha two",
			"document_id": "doc-1",
			"chunk_index": 1.0,
			"metadata":    map[string]interface{}{"title": "Chapter One"},
		}},
	}))
	return retrieval.New(&stubEmbedder{vector: []float32{1, 0}}, st, 5, 0.3)
}

func seededRetriever(t *testing.T) *retrieval.Retriever {
	st := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, st.EnsureCollection(ctx, 2, vectorindex.DistanceCosine))
	require.NoError(t, st.Upsert(ctx, []vectorindex.Point{
		{ID: "p1", Vector: []float32{1, 0}, Payload: map[string]interface{}{
			"content":     strings.Repeat("alpha ", 50),
			"document_id": "doc-1",
			"chunk_index": 0.0,
			"metadata":    map[string]interface{}{"title": "Chapter One"},
		}},
	}))
	return retrieval.New(&stubEmbedder{vector: []float32{1, 0}}, st, 5, 0.3)
}

func emptyRetriever(t *testing.T) *retrieval.Retriever {
	st := memory.NewStore()
	require.NoError(t, st.EnsureCollection(context.Background(), 2, vectorindex.DistanceCosine))
	return retrieval.New(&stubEmbedder{vector: []float32{1, 0}}, st, 5, 0.3)
}

func downRetriever(t *testing.T) *retrieval.Retriever {
	return retrieval.New(&stubEmbedder{vector: []float32{1, 0}}, vectorindex.Unavailable{}, 5, 0.3)
}

func TestProcessQueryAssemblesMessages(t *testing.T) {
	gen := &stubGenerator{response: "the answer"}
	svc := New(seededRetriever(t), gen, nil, Options{SystemPrompt: "You are helpful."})

	history := []model.ConversationTurn{
		{Role: model.RoleUser, Content: "h1"},
		{Role: model.RoleAssistant, Content: "h2"},
	}
	bundle, err := svc.ProcessQuery(context.Background(), "what is alpha", "extra notes", history)
	require.NoError(t, err)
	require.Equal(t, "the answer", bundle.Response)
	require.NotEmpty(t, bundle.ConversationID)
	require.NotEmpty(t, bundle.Timestamp)

	require.Len(t, gen.messages, 4)
	require.Equal(t, ai.RoleSystem, gen.messages[0].Role)
	require.Equal(t, "You are helpful.", gen.messages[0].Content)
	require.Equal(t, ai.RoleUser, gen.messages[1].Role)
	require.Contains(t, gen.messages[1].Content, "Previous conversation:")
	require.Contains(t, gen.messages[1].Content, "user: h1")
	require.Contains(t, gen.messages[1].Content, "assistant: h2")
	require.Equal(t, ai.RoleSystem, gen.messages[2].Role)
	require.Contains(t, gen.messages[2].Content, "Context for answering the question:")
	require.Contains(t, gen.messages[2].Content, "extra notes")
	require.Contains(t, gen.messages[2].Content, "Source: Chapter One")
	require.Equal(t, ai.RoleUser, gen.messages[3].Role)
	require.Equal(t, "what is alpha", gen.messages[3].Content)
}

func TestProcessQueryHistoryWindow(t *testing.T) {
	gen := &stubGenerator{response: "ok"}
	svc := New(emptyRetriever(t), gen, nil, Options{SystemPrompt: "p"})

	history := make([]model.ConversationTurn, 0, 8)
	for _, c := range []string{"m1", "m2", "m3", "m4", "m5", "m6", "m7"} {
		history = append(history, model.ConversationTurn{Role: model.RoleUser, Content: c})
	}
	_, err := svc.ProcessQuery(context.Background(), "q", "", history)
	require.NoError(t, err)

	var hist string
	for _, m := range gen.messages {
		if strings.HasPrefix(m.Content, "Previous conversation:") {
			hist = m.Content
		}
	}
	require.NotEmpty(t, hist)
	require.NotContains(t, hist, "m1")
	require.NotContains(t, hist, "m2")
	require.Contains(t, hist, "m3")
	require.Contains(t, hist, "m7")
}

func TestProcessQueryNoContextNoHistory(t *testing.T) {
	gen := &stubGenerator{response: "ok"}
	svc := New(emptyRetriever(t), gen, nil, Options{SystemPrompt: "p"})

	bundle, err := svc.ProcessQuery(context.Background(), "q", "", nil)
	require.NoError(t, err)
	require.Len(t, gen.messages, 2)
	require.Equal(t, "", bundle.Context)
	require.Empty(t, bundle.Sources)
}

func TestProcessQueryIndexDownIsFatal(t *testing.T) {
	gen := &stubGenerator{response: "ungrounded"}
	svc := New(downRetriever(t), gen, nil, Options{SystemPrompt: "p"})

	_, err := svc.ProcessQuery(context.Background(), "q", "", nil)
	require.ErrorIs(t, err, errs.ErrQueryProcessing)
	require.Empty(t, gen.messages)
}

func TestProcessQueryBlankExtraContextFiltered(t *testing.T) {
	gen := &stubGenerator{response: "ok"}
	svc := New(emptyRetriever(t), gen, nil, Options{SystemPrompt: "p"})

	bundle, err := svc.ProcessQuery(context.Background(), "q", "  \n\t ", nil)
	require.NoError(t, err)
	require.Equal(t, "", bundle.Context)
	require.Len(t, gen.messages, 2)
}

func TestProcessQuerySourcePreviews(t *testing.T) {
	gen := &stubGenerator{response: "ok"}
	svc := New(seededRetriever(t), gen, nil, Options{SystemPrompt: "p"})

	bundle, err := svc.ProcessQuery(context.Background(), "alpha", "", nil)
	require.NoError(t, err)
	require.Len(t, bundle.Sources, 1)
	src := bundle.Sources[0]
	require.Equal(t, "p1", src.ID)
	require.Equal(t, "doc-1", src.DocumentID)
	require.True(t, strings.HasSuffix(src.Content, "..."))
	require.Len(t, src.Content, 203)
}

func TestProcessQueryGenerationFailureIsFatal(t *testing.T) {
	gen := &stubGenerator{err: errors.New("llm down")}
	svc := New(seededRetriever(t), gen, nil, Options{SystemPrompt: "p"})

	_, err := svc.ProcessQuery(context.Background(), "q", "", nil)
	require.ErrorIs(t, err, errs.ErrQueryProcessing)
}

func TestProcessQueryEmptyQuery(t *testing.T) {
	svc := New(seededRetriever(t), &stubGenerator{response: "ok"}, nil, Options{SystemPrompt: "p"})
	_, err := svc.ProcessQuery(context.Background(), "   ", "", nil)
	require.ErrorIs(t, err, errs.ErrQueryProcessing)
}

func TestProcessQueryEnhancerFailureKeepsOriginal(t *testing.T) {
	gen := &stubGenerator{response: "original"}
	svc := New(seededRetriever(t), gen, failingEnhancer{}, Options{SystemPrompt: "p", Summarize: true})

	bundle, err := svc.ProcessQuery(context.Background(), "q", "", nil)
	require.NoError(t, err)
	require.Equal(t, "original", bundle.Response)
}

func TestProcessQueryRerankReordersSources(t *testing.T) {
	gen := &stubGenerator{response: "ok"}
	svc := New(twoChunkRetriever(t), gen, reversingEnhancer{}, Options{SystemPrompt: "p", Rerank: true})

	bundle, err := svc.ProcessQuery(context.Background(), "alpha", "", nil)
	require.NoError(t, err)
	require.Len(t, bundle.Sources, 2)
	require.Equal(t, "p2", bundle.Sources[0].ID)
	require.Equal(t, "p1", bundle.Sources[1].ID)
	require.Equal(t, float32(0.9), bundle.Sources[0].Score)
}

func TestProcessQueryRerankFailureKeepsOrder(t *testing.T) {
	svc := New(twoChunkRetriever(t), &stubGenerator{response: "ok"}, failingEnhancer{}, Options{SystemPrompt: "p", Rerank: true})

	bundle, err := svc.ProcessQuery(context.Background(), "alpha", "", nil)
	require.NoError(t, err)
	require.Len(t, bundle.Sources, 2)
	require.Equal(t, "p1", bundle.Sources[0].ID)
}

func TestChatKeepsConversationID(t *testing.T) {
	svc := New(emptyRetriever(t), &stubGenerator{response: "ok"}, nil, Options{SystemPrompt: "p"})

	bundle, err := svc.Chat(context.Background(), "hi", "conv-42", nil)
	require.NoError(t, err)
	require.Equal(t, "conv-42", bundle.ConversationID)

	bundle, err = svc.Chat(context.Background(), "hi", "", nil)
	require.NoError(t, err)
	require.NotEmpty(t, bundle.ConversationID)
}
