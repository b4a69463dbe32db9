package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultCohereEndpoint       = "https://api.cohere.ai"
	defaultCohereSummarizeModel = "summarize-xlarge"
	defaultCohereRerankModel    = "rerank-english-v3.0"
)

type CohereConfig struct {
	Endpoint       string `json:"endpoint"`
	APIKey         string `json:"api_key"`
	SummarizeModel string `json:"summarize_model"`
	RerankModel    string `json:"rerank_model"`
	TimeoutSecs    int    `json:"timeout_secs"`
}

type cohereEnhancer struct {
	cfg    CohereConfig
	client *http.Client
}

func NewCohere(cfg CohereConfig) (Enhancer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cohere api key is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultCohereEndpoint
	}
	if cfg.SummarizeModel == "" {
		cfg.SummarizeModel = defaultCohereSummarizeModel
	}
	if cfg.RerankModel == "" {
		cfg.RerankModel = defaultCohereRerankModel
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &cohereEnhancer{cfg: cfg, client: &http.Client{Timeout: timeout}}, nil
}

func (c *cohereEnhancer) Summarize(ctx context.Context, text string) (string, error) {
	body := map[string]interface{}{
		"text":   text,
		"length": "medium",
		"format": "paragraph",
		"model":  c.cfg.SummarizeModel,
	}
	var resp struct {
		Summary string `json:"summary"`
	}
	if err := c.post(ctx, "/v1/summarize", body, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Summary) == "" {
		return "", fmt.Errorf("cohere returned empty summary")
	}
	return resp.Summary, nil
}

func (c *cohereEnhancer) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RankedDocument, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}
	body := map[string]interface{}{
		"query":     query,
		"documents": documents,
		"top_n":     topN,
		"model":     c.cfg.RerankModel,
	}
	var resp struct {
		Results []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := c.post(ctx, "/v1/rerank", body, &resp); err != nil {
		return nil, err
	}
	out := make([]RankedDocument, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			return nil, fmt.Errorf("cohere returned out-of-range index %d", r.Index)
		}
		out = append(out, RankedDocument{
			Index:    r.Index,
			Document: documents[r.Index],
			Score:    r.RelevanceScore,
		})
	}
	return out, nil
}

func (c *cohereEnhancer) post(ctx context.Context, path string, body interface{}, dst interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.Endpoint, "/")+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call cohere: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cohere returned status %d: %s", resp.StatusCode, clipBody(raw))
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func clipBody(raw []byte) string {
	const limit = 256
	if len(raw) > limit {
		raw = raw[:limit]
	}
	return string(raw)
}
