package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/ragline/internal/model"
	"github.com/xxxsen/ragline/internal/pkg/errs"
)

var documentFields = []string{
	"id", "title", "source_path", "metadata", "content_hash", "chunk_count", "ctime", "mtime",
}

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	metadata, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":           doc.ID,
		"title":        doc.Title,
		"source_path":  doc.SourcePath,
		"metadata":     metadata,
		"content_hash": doc.ContentHash,
		"chunk_count":  doc.ChunkCount,
		"ctime":        doc.Ctime,
		"mtime":        doc.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *DocumentRepo) Update(ctx context.Context, doc *model.Document) error {
	metadata, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return err
	}
	where := map[string]interface{}{
		"id": doc.ID,
	}
	update := map[string]interface{}{
		"title":        doc.Title,
		"source_path":  doc.SourcePath,
		"metadata":     metadata,
		"content_hash": doc.ContentHash,
		"chunk_count":  doc.ChunkCount,
		"mtime":        doc.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, docID string) (*model.Document, error) {
	return r.getOne(ctx, map[string]interface{}{"id": docID})
}

func (r *DocumentRepo) GetBySourcePath(ctx context.Context, sourcePath string) (*model.Document, error) {
	return r.getOne(ctx, map[string]interface{}{"source_path": sourcePath})
}

func (r *DocumentRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.Document, error) {
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	return scanDocument(rows)
}

func (r *DocumentRepo) List(ctx context.Context, offset, limit int) ([]*model.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	where := map[string]interface{}{
		"_orderby": "ctime desc",
		"_limit":   []uint{uint(offset), uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	return r.queryAll(ctx, sqlStr, args)
}

// SearchByTitle matches a case-insensitive substring of the title.
func (r *DocumentRepo) SearchByTitle(ctx context.Context, keyword string, limit int) ([]*model.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	where := map[string]interface{}{
		"title like": "%" + keyword + "%",
		"_orderby":   "ctime desc",
		"_limit":     []uint{0, uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	return r.queryAll(ctx, sqlStr, args)
}

func (r *DocumentRepo) Count(ctx context.Context) (int64, error) {
	sqlStr, args, err := builder.BuildSelect("documents", nil, []string{"count(1)"})
	if err != nil {
		return 0, err
	}
	var count int64
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *DocumentRepo) Delete(ctx context.Context, docID string) error {
	sqlStr, args, err := builder.BuildDelete("documents", map[string]interface{}{"id": docID})
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) queryAll(ctx context.Context, sqlStr string, args []interface{}) ([]*model.Document, error) {
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []*model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func scanDocument(rows *sql.Rows) (*model.Document, error) {
	var doc model.Document
	var metadata string
	if err := rows.Scan(&doc.ID, &doc.Title, &doc.SourcePath, &metadata,
		&doc.ContentHash, &doc.ChunkCount, &doc.Ctime, &doc.Mtime); err != nil {
		return nil, err
	}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decode document metadata: %w", err)
		}
	}
	return &doc, nil
}

func encodeMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode document metadata: %w", err)
	}
	return string(data), nil
}
