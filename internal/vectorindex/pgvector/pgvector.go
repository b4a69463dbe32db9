package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/ragline/internal/pkg/errs"
	"github.com/xxxsen/ragline/internal/vectorindex"
)

// Index stores points in a Postgres table with a pgvector column. One table
// per collection, payload kept as JSONB so filters work on arbitrary fields.
type Index struct {
	db    *sql.DB
	table string
}

func New(db *sql.DB, collection string) (*Index, error) {
	if db == nil {
		return nil, fmt.Errorf("pgvector db is required")
	}
	if !validTableName(collection) {
		return nil, fmt.Errorf("invalid collection name: %s", collection)
	}
	return &Index{db: db, table: collection}, nil
}

func validTableName(name string) bool {
	if name == "" {
		return false
	}
	for _, c := range name {
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func (x *Index) EnsureCollection(ctx context.Context, dimension int, distance vectorindex.Distance) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", errs.ErrIndexUnavailable, dimension)
	}
	// Search scores with the cosine operator; any other metric is a
	// configuration mismatch, not something to silently accept.
	if distance != vectorindex.DistanceCosine {
		return fmt.Errorf("%w: pgvector backend only supports cosine, got %s", errs.ErrIndexUnavailable, distance)
	}

	var existing sql.NullInt64
	probe := fmt.Sprintf(`SELECT atttypmod FROM pg_attribute
		WHERE attrelid = to_regclass('%s') AND attname = 'embedding'`, x.table)
	err := x.db.QueryRowContext(ctx, probe).Scan(&existing)
	if err == nil && existing.Valid {
		if int(existing.Int64) != dimension {
			return fmt.Errorf("%w: table %s exists with dimension %d, requested %d",
				errs.ErrIndexUnavailable, x.table, existing.Int64, dimension)
		}
		return nil
	}
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("%w: %v", errs.ErrIndexUnavailable, err)
	}

	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		embedding vector(%d) NOT NULL,
		payload JSONB NOT NULL DEFAULT '{}'::jsonb
	)`, x.table, dimension)
	if _, err := x.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIndexUnavailable, err)
	}
	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_document_id_idx
		ON %s ((payload->>'document_id'))`, x.table, x.table)
	if _, err := x.db.ExecContext(ctx, idx); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIndexUnavailable, err)
	}
	return nil
}

func (x *Index) Upsert(ctx context.Context, points []vectorindex.Point) error {
	if len(points) == 0 {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, embedding, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			payload = EXCLUDED.payload`, x.table)
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIndexUnavailable, err)
	}
	defer tx.Rollback()
	for _, p := range points {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("%w: marshal payload for %s: %v", errs.ErrIndexWrite, p.ID, err)
		}
		if _, err := tx.ExecContext(ctx, query, p.ID, pgvector.NewVector(p.Vector), payload); err != nil {
			return fmt.Errorf("%w: upsert %s: %v", errs.ErrIndexWrite, p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIndexWrite, err)
	}
	return nil
}

func (x *Index) Search(ctx context.Context, vector []float32, opts vectorindex.SearchOptions) ([]vectorindex.ScoredPoint, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}
	args := []interface{}{pgvector.NewVector(vector)}
	// cosine distance -> similarity so scores compare like other backends
	score := "1 - (embedding <=> $1)"

	where := make([]string, 0, 4)
	if opts.Filter != nil {
		for _, cond := range opts.Filter.Must {
			field := payloadExpr(cond.Field)
			if cond.Equals != nil {
				args = append(args, fmt.Sprintf("%v", cond.Equals))
				where = append(where, fmt.Sprintf("%s = $%d", field, len(args)))
				continue
			}
			if cond.GTE != nil {
				args = append(args, *cond.GTE)
				where = append(where, fmt.Sprintf("(%s)::float8 >= $%d", field, len(args)))
			}
			if cond.LTE != nil {
				args = append(args, *cond.LTE)
				where = append(where, fmt.Sprintf("(%s)::float8 <= $%d", field, len(args)))
			}
		}
	}
	if opts.ScoreThreshold != nil {
		args = append(args, *opts.ScoreThreshold)
		where = append(where, fmt.Sprintf("%s >= $%d", score, len(args)))
	}

	query := fmt.Sprintf(`SELECT id, %s AS score, payload FROM %s`, score, x.table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, topK)
	query += fmt.Sprintf(" ORDER BY score DESC, id ASC LIMIT $%d", len(args))

	rows, err := x.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	var hits []vectorindex.ScoredPoint
	for rows.Next() {
		var (
			id      string
			scoreV  float64
			rawData []byte
		)
		if err := rows.Scan(&id, &scoreV, &rawData); err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrRetrieval, err)
		}
		var payload map[string]interface{}
		if len(rawData) > 0 {
			if err := json.Unmarshal(rawData, &payload); err != nil {
				return nil, fmt.Errorf("%w: decode payload for %s: %v", errs.ErrRetrieval, id, err)
			}
		}
		hits = append(hits, vectorindex.ScoredPoint{ID: id, Score: float32(scoreV), Payload: payload})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrRetrieval, err)
	}
	return hits, nil
}

func (x *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE payload->>'document_id' = $1`, x.table)
	if _, err := x.db.ExecContext(ctx, query, documentID); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIndexWrite, err)
	}
	return nil
}

// payloadExpr maps a dotted condition field to a JSONB text extraction.
// "metadata.subject" becomes payload->'metadata'->>'subject'.
func payloadExpr(field string) string {
	parts := strings.Split(field, ".")
	expr := "payload"
	for i, p := range parts {
		p = strings.ReplaceAll(p, "'", "")
		if i == len(parts)-1 {
			expr += fmt.Sprintf("->>'%s'", p)
		} else {
			expr += fmt.Sprintf("->'%s'", p)
		}
	}
	return expr
}
