package vectorindex

import (
	"context"
	"fmt"

	"github.com/xxxsen/ragline/internal/pkg/errs"
)

type Distance string

const (
	DistanceCosine Distance = "cosine"
	DistanceDot    Distance = "dot"
	DistanceEuclid Distance = "euclid"
)

func ParseDistance(v string) (Distance, error) {
	switch Distance(v) {
	case DistanceCosine, DistanceDot, DistanceEuclid:
		return Distance(v), nil
	}
	return "", fmt.Errorf("unsupported distance metric: %s", v)
}

// Point is one stored chunk vector plus its payload. Payload fields used by
// the pipeline: content, document_id, chunk_index, total_chunks, metadata,
// created_at.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]interface{}
}

// ScoredPoint is one search hit; higher score means more similar.
type ScoredPoint struct {
	ID      string
	Score   float32
	Payload map[string]interface{}
}

// Condition constrains one payload field. Equals and the range bounds are
// mutually exclusive; a filter matches when every condition matches.
type Condition struct {
	Field  string
	Equals interface{}
	GTE    *float64
	LTE    *float64
}

type Filter struct {
	Must []Condition
}

type SearchOptions struct {
	TopK           int
	ScoreThreshold *float32
	Filter         *Filter
}

// Index is the contract the pipeline requires of a vector store. Upsert is
// keyed by point id and idempotent; Search returns at most TopK hits in
// strictly non-increasing score order, all at or above ScoreThreshold when
// one is set. EnsureCollection is idempotent but must fail loudly when an
// existing collection disagrees on dimension or metric.
type Index interface {
	EnsureCollection(ctx context.Context, dimension int, distance Distance) error
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, opts SearchOptions) ([]ScoredPoint, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

// Unavailable is the null index for deployments with no store configured.
// Every call reports ErrIndexUnavailable so callers can tell "no collaborator"
// apart from "no matches".
type Unavailable struct{}

func (Unavailable) EnsureCollection(ctx context.Context, dimension int, distance Distance) error {
	return fmt.Errorf("%w: no vector index configured", errs.ErrIndexUnavailable)
}

func (Unavailable) Upsert(ctx context.Context, points []Point) error {
	return fmt.Errorf("%w: no vector index configured", errs.ErrIndexUnavailable)
}

func (Unavailable) Search(ctx context.Context, vector []float32, opts SearchOptions) ([]ScoredPoint, error) {
	return nil, fmt.Errorf("%w: no vector index configured", errs.ErrIndexUnavailable)
}

func (Unavailable) DeleteByDocument(ctx context.Context, documentID string) error {
	return fmt.Errorf("%w: no vector index configured", errs.ErrIndexUnavailable)
}
