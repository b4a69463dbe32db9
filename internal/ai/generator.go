package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/ragline/internal/pkg/errs"
)

// IGenerator produces one completion for an ordered message sequence.
type IGenerator interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// IEmbedder turns a batch of texts into fixed-dimension vectors, one upstream
// round trip, order preserved.
type IEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelName() string
}

type generator struct {
	provider IChatProvider
	model    string
	opts     GenOptions
	timeout  time.Duration
}

func NewGenerator(p IChatProvider, model string, opts GenOptions, timeout time.Duration) IGenerator {
	return &generator{provider: p, model: model, opts: opts, timeout: timeout}
}

func (g *generator) Chat(ctx context.Context, messages []Message) (string, error) {
	if g.provider == nil {
		return "", fmt.Errorf("%w: generator not configured", errs.ErrGeneration)
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	resp, err := g.provider.Chat(ctx, g.model, messages, g.opts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrGeneration, err)
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", errs.ErrGeneration)
	}
	return text, nil
}

type embedder struct {
	provider  IEmbedProvider
	model     string
	dimension int
	timeout   time.Duration
}

func NewEmbedder(p IEmbedProvider, model string, dimension int, timeout time.Duration) IEmbedder {
	return &embedder{provider: p, model: model, dimension: dimension, timeout: timeout}
}

func (e *embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if e.provider == nil {
		return nil, fmt.Errorf("%w: embedder not configured", errs.ErrEmbedding)
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	vectors, err := e.provider.EmbedBatch(ctx, e.model, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrEmbedding, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", errs.ErrEmbedding, len(vectors), len(texts))
	}
	for i, vec := range vectors {
		if e.dimension > 0 && len(vec) != e.dimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", errs.ErrEmbedding, i, len(vec), e.dimension)
		}
	}
	return vectors, nil
}

func (e *embedder) Dimension() int {
	return e.dimension
}

func (e *embedder) ModelName() string {
	return e.model
}
