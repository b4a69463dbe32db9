package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/xxxsen/ragline/internal/pkg/errs"
	"github.com/xxxsen/ragline/internal/vectorindex"
)

// Store is an in-process vector index. It backs tests and single-node
// deployments that do not run an external store.
type Store struct {
	mu        sync.RWMutex
	dimension int
	distance  vectorindex.Distance
	points    map[string]vectorindex.Point
}

func NewStore() *Store {
	return &Store{points: make(map[string]vectorindex.Point)}
}

func (s *Store) EnsureCollection(ctx context.Context, dimension int, distance vectorindex.Distance) error {
	_ = ctx
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", errs.ErrIndexUnavailable, dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		s.dimension = dimension
		s.distance = distance
		return nil
	}
	if s.dimension != dimension || s.distance != distance {
		return fmt.Errorf("%w: collection exists with dimension=%d distance=%s, requested dimension=%d distance=%s",
			errs.ErrIndexUnavailable, s.dimension, s.distance, dimension, distance)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, points []vectorindex.Point) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		return fmt.Errorf("%w: collection not created", errs.ErrIndexWrite)
	}
	for _, p := range points {
		if len(p.Vector) != s.dimension {
			return fmt.Errorf("%w: point %s has dimension %d, want %d", errs.ErrIndexWrite, p.ID, len(p.Vector), s.dimension)
		}
	}
	for _, p := range points {
		s.points[p.ID] = p
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, opts vectorindex.SearchOptions) ([]vectorindex.ScoredPoint, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dimension == 0 {
		return nil, fmt.Errorf("%w: collection not created", errs.ErrIndexUnavailable)
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query dimension %d, want %d", errs.ErrRetrieval, len(vector), s.dimension)
	}

	hits := make([]vectorindex.ScoredPoint, 0, len(s.points))
	for _, p := range s.points {
		if opts.Filter != nil && !matches(p.Payload, opts.Filter) {
			continue
		}
		score := s.score(vector, p.Vector)
		if opts.ScoreThreshold != nil && score < *opts.ScoreThreshold {
			continue
		}
		hits = append(hits, vectorindex.ScoredPoint{ID: p.ID, Score: score, Payload: p.Payload})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if opts.TopK > 0 && len(hits) > opts.TopK {
		hits = hits[:opts.TopK]
	}
	return hits, nil
}

func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.points {
		if doc, ok := p.Payload["document_id"].(string); ok && doc == documentID {
			delete(s.points, id)
		}
	}
	return nil
}

func (s *Store) score(query, stored []float32) float32 {
	switch s.distance {
	case vectorindex.DistanceDot:
		return dot(query, stored)
	case vectorindex.DistanceEuclid:
		// Negated distance keeps "higher is more similar".
		return -float32(math.Sqrt(float64(sqDist(query, stored))))
	default:
		return cosine(query, stored)
	}
}

func matches(payload map[string]interface{}, filter *vectorindex.Filter) bool {
	for _, cond := range filter.Must {
		value, ok := lookup(payload, cond.Field)
		if !ok {
			return false
		}
		if cond.Equals != nil {
			if fmt.Sprintf("%v", value) != fmt.Sprintf("%v", cond.Equals) {
				return false
			}
			continue
		}
		num, ok := toFloat(value)
		if !ok {
			return false
		}
		if cond.GTE != nil && num < *cond.GTE {
			return false
		}
		if cond.LTE != nil && num > *cond.LTE {
			return false
		}
	}
	return true
}

// lookup resolves dotted paths like "metadata.chapter" against nested maps.
func lookup(payload map[string]interface{}, field string) (interface{}, bool) {
	current := payload
	for {
		idx := indexDot(field)
		if idx < 0 {
			v, ok := current[field]
			return v, ok
		}
		next, ok := current[field[:idx]].(map[string]interface{})
		if !ok {
			return nil, false
		}
		current = next
		field = field[idx+1:]
	}
}

func indexDot(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func cosine(a, b []float32) float32 {
	var dotSum, normA, normB float64
	for i := range a {
		dotSum += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dotSum / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}

func sqDist(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}
