package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xxxsen/ragline/internal/pkg/errs"
	"github.com/xxxsen/ragline/internal/vectorindex"
)

// Index is a REST adapter over a Qdrant collection.
type Index struct {
	baseURL    string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL         string `json:"url"`
	APIKey      string `json:"api_key"`
	TimeoutSecs int    `json:"timeout_secs"`
}

func New(cfg Config, collection string) (*Index, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Index{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

var distanceNames = map[vectorindex.Distance]string{
	vectorindex.DistanceCosine: "Cosine",
	vectorindex.DistanceDot:    "Dot",
	vectorindex.DistanceEuclid: "Euclid",
}

// EnsureCollection creates the collection when absent. An existing collection
// is probed first; a dimension or metric mismatch is a configuration error,
// never papered over.
func (x *Index) EnsureCollection(ctx context.Context, dimension int, distance vectorindex.Distance) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", errs.ErrIndexUnavailable, dimension)
	}
	wantDistance, ok := distanceNames[distance]
	if !ok {
		return fmt.Errorf("%w: unsupported distance %s", errs.ErrIndexUnavailable, distance)
	}

	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	status, err := x.do(ctx, http.MethodGet, fmt.Sprintf("/collections/%s", x.collection), nil, &info)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIndexUnavailable, err)
	}
	if status == http.StatusOK {
		got := info.Result.Config.Params.Vectors
		if got.Size != dimension || got.Distance != wantDistance {
			return fmt.Errorf("%w: collection %s exists with size=%d distance=%s, requested size=%d distance=%s",
				errs.ErrIndexUnavailable, x.collection, got.Size, got.Distance, dimension, wantDistance)
		}
		return nil
	}

	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     dimension,
			"distance": wantDistance,
		},
	}
	status, err = x.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", x.collection), body, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIndexUnavailable, err)
	}
	if status >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: create collection returned status %d", errs.ErrIndexUnavailable, status)
	}
	return nil
}

func (x *Index) Upsert(ctx context.Context, points []vectorindex.Point) error {
	if len(points) == 0 {
		return nil
	}
	items := make([]map[string]interface{}, 0, len(points))
	for _, p := range points {
		items = append(items, map[string]interface{}{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		})
	}
	body := map[string]interface{}{"points": items}
	status, err := x.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", x.collection), body, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIndexUnavailable, err)
	}
	if status >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: upsert returned status %d", errs.ErrIndexWrite, status)
	}
	return nil
}

func (x *Index) Search(ctx context.Context, vector []float32, opts vectorindex.SearchOptions) ([]vectorindex.ScoredPoint, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}
	body := map[string]interface{}{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if opts.ScoreThreshold != nil {
		body["score_threshold"] = *opts.ScoreThreshold
	}
	if filter := buildFilter(opts.Filter); filter != nil {
		body["filter"] = filter
	}

	var resp struct {
		Result []struct {
			ID      interface{}            `json:"id"`
			Score   float32                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	status, err := x.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", x.collection), body, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrIndexUnavailable, err)
	}
	if status >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: search returned status %d", errs.ErrRetrieval, status)
	}
	hits := make([]vectorindex.ScoredPoint, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, vectorindex.ScoredPoint{
			ID:      fmt.Sprintf("%v", r.ID),
			Score:   r.Score,
			Payload: r.Payload,
		})
	}
	return hits, nil
}

func (x *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	body := map[string]interface{}{
		"filter": map[string]interface{}{
			"must": []interface{}{
				map[string]interface{}{
					"key":   "document_id",
					"match": map[string]interface{}{"value": documentID},
				},
			},
		},
	}
	status, err := x.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/delete?wait=true", x.collection), body, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIndexUnavailable, err)
	}
	if status >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: delete returned status %d", errs.ErrIndexWrite, status)
	}
	return nil
}

func buildFilter(filter *vectorindex.Filter) map[string]interface{} {
	if filter == nil || len(filter.Must) == 0 {
		return nil
	}
	must := make([]interface{}, 0, len(filter.Must))
	for _, cond := range filter.Must {
		if cond.Equals != nil {
			must = append(must, map[string]interface{}{
				"key":   cond.Field,
				"match": map[string]interface{}{"value": cond.Equals},
			})
			continue
		}
		rng := map[string]interface{}{}
		if cond.GTE != nil {
			rng["gte"] = *cond.GTE
		}
		if cond.LTE != nil {
			rng["lte"] = *cond.LTE
		}
		if len(rng) == 0 {
			continue
		}
		must = append(must, map[string]interface{}{
			"key":   cond.Field,
			"range": rng,
		})
	}
	return map[string]interface{}{"must": must}
}

// do issues one request and decodes the body into dst when provided. A 404 on
// GET is reported through the status code, not as an error, so callers can
// probe for existence.
func (x *Index) do(ctx context.Context, method, path string, body interface{}, dst interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, x.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if x.apiKey != "" {
		req.Header.Set("api-key", x.apiKey)
	}
	resp, err := x.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if dst != nil && resp.StatusCode < http.StatusMultipleChoices {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return resp.StatusCode, err
		}
		return resp.StatusCode, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
