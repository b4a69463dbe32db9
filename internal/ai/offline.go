package ai

import (
	"context"
	"fmt"
)

// The offline providers serve deployments explicitly configured without a
// reachable AI backend. They are selected once, by configuration, and are
// never used as a runtime fallback for a failing real provider.

type offlineConfig struct {
	Dimension int `json:"dimension"`
}

type offlineEmbedProvider struct {
	dimension int
	fill      float32
}

func (p *offlineEmbedProvider) Name() string {
	return "offline"
}

// EmbedBatch returns constant vectors of the configured dimension so the
// downstream shape invariants hold without a network call.
func (p *offlineEmbedProvider) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	_ = ctx
	_ = model
	result := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, p.dimension)
		for j := range vec {
			vec[j] = p.fill
		}
		result[i] = vec
	}
	return result, nil
}

type offlineChatProvider struct{}

func (p *offlineChatProvider) Name() string {
	return "offline"
}

func (p *offlineChatProvider) Chat(ctx context.Context, model string, messages []Message, opts GenOptions) (string, error) {
	_ = ctx
	_ = model
	_ = opts
	query := ""
	if len(messages) > 0 {
		query = messages[len(messages)-1].Content
	}
	return fmt.Sprintf("I received your query: %q. This deployment runs without a generation backend.", query), nil
}

func createOfflineEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg := &offlineConfig{}
	if args != nil {
		if err := decodeConfig(args, cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 1536
	}
	return &offlineEmbedProvider{dimension: cfg.Dimension, fill: 0.1}, nil
}

func createOfflineChatFactory(args interface{}) (IChatProvider, error) {
	_ = args
	return &offlineChatProvider{}, nil
}

func init() {
	Register("offline", createOfflineChatFactory)
	RegisterEmbed("offline", createOfflineEmbedFactory)
}
