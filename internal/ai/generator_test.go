package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragline/internal/pkg/errs"
)

type stubEmbedProvider struct {
	vectors [][]float32
	err     error
	calls   int
	lastIn  []string
}

func (s *stubEmbedProvider) Name() string { return "stub" }

func (s *stubEmbedProvider) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	s.calls++
	s.lastIn = texts
	if s.err != nil {
		return nil, s.err
	}
	if s.vectors != nil {
		return s.vectors, nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), float32(len(texts[i]))}
	}
	return out, nil
}

type stubChatProvider struct {
	reply string
	err   error
	last  []Message
}

func (s *stubChatProvider) Name() string { return "stub" }

func (s *stubChatProvider) Chat(ctx context.Context, model string, messages []Message, opts GenOptions) (string, error) {
	s.last = messages
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func TestEmbedderEmptyInput(t *testing.T) {
	e := NewEmbedder(&stubEmbedProvider{}, "m", 2, 0)
	out, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestEmbedderSingleCallPreservesOrder(t *testing.T) {
	provider := &stubEmbedProvider{}
	e := NewEmbedder(provider, "m", 2, 0)

	out, err := e.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, 1, provider.calls)
	require.Equal(t, []string{"a", "bb", "ccc"}, provider.lastIn)
	require.Equal(t, []float32{0, 1}, out[0])
	require.Equal(t, []float32{2, 3}, out[2])
}

func TestEmbedderCardinalityMismatch(t *testing.T) {
	provider := &stubEmbedProvider{vectors: [][]float32{{1, 2}}}
	e := NewEmbedder(provider, "m", 2, 0)

	_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.ErrorIs(t, err, errs.ErrEmbedding)
}

func TestEmbedderDimensionMismatch(t *testing.T) {
	provider := &stubEmbedProvider{vectors: [][]float32{{1, 2, 3}}}
	e := NewEmbedder(provider, "m", 2, 0)

	_, err := e.EmbedBatch(context.Background(), []string{"a"})
	require.ErrorIs(t, err, errs.ErrEmbedding)
}

func TestEmbedderWrapsProviderFailure(t *testing.T) {
	provider := &stubEmbedProvider{err: fmt.Errorf("upstream down")}
	e := NewEmbedder(provider, "m", 2, time.Second)

	_, err := e.EmbedBatch(context.Background(), []string{"a"})
	require.ErrorIs(t, err, errs.ErrEmbedding)
}

func TestGeneratorWrapsFailure(t *testing.T) {
	g := NewGenerator(&stubChatProvider{err: errors.New("boom")}, "m", GenOptions{}, 0)
	_, err := g.Chat(context.Background(), []Message{{Role: RoleUser, Content: "q"}})
	require.ErrorIs(t, err, errs.ErrGeneration)
}

func TestGeneratorRejectsEmptyCompletion(t *testing.T) {
	g := NewGenerator(&stubChatProvider{reply: "  "}, "m", GenOptions{}, 0)
	_, err := g.Chat(context.Background(), []Message{{Role: RoleUser, Content: "q"}})
	require.ErrorIs(t, err, errs.ErrGeneration)
}

func TestGroupGeneratorFallsOver(t *testing.T) {
	bad := NewGenerator(&stubChatProvider{err: errors.New("down")}, "m1", GenOptions{}, 0)
	good := NewGenerator(&stubChatProvider{reply: "ok"}, "m2", GenOptions{}, 0)
	group := NewGroupGenerator([]GeneratorEntry{
		{Name: "bad", Generator: bad},
		{Name: "good", Generator: good},
	})

	out, err := group.Chat(context.Background(), []Message{{Role: RoleUser, Content: "q"}})
	require.NoError(t, err)
	require.Equal(t, "ok", out)
}

func TestOfflineEmbedderDeterministic(t *testing.T) {
	provider, err := NewEmbedProvider("offline", map[string]interface{}{"dimension": 8})
	require.NoError(t, err)

	first, err := provider.EmbedBatch(context.Background(), "m", []string{"a", "b"})
	require.NoError(t, err)
	second, err := provider.EmbedBatch(context.Background(), "m", []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, first, 2)
	require.Len(t, first[0], 8)
}
