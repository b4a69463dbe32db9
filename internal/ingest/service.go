package ingest

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/ragline/internal/ai"
	"github.com/xxxsen/ragline/internal/chunker"
	"github.com/xxxsen/ragline/internal/model"
	"github.com/xxxsen/ragline/internal/pkg/errs"
	"github.com/xxxsen/ragline/internal/repo"
	"github.com/xxxsen/ragline/internal/vectorindex"
	"go.uber.org/zap"
)

// Request carries one document into the pipeline. ID is optional; supplying
// the id of an existing document reindexes it in place.
type Request struct {
	ID         string
	Title      string
	Content    string
	SourcePath string
	Metadata   map[string]string
}

type Service struct {
	splitter *chunker.Splitter
	embedder ai.IEmbedder
	index    vectorindex.Index
	docs     *repo.DocumentRepo
}

func New(splitter *chunker.Splitter, embedder ai.IEmbedder, index vectorindex.Index, docs *repo.DocumentRepo) *Service {
	if index == nil {
		index = vectorindex.Unavailable{}
	}
	return &Service{splitter: splitter, embedder: embedder, index: index, docs: docs}
}

// ProcessDocument chunks, embeds and indexes one document, then records it in
// the catalog. Reingesting the same document id replaces its chunks.
func (s *Service) ProcessDocument(ctx context.Context, req *Request) (*model.IngestReport, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: empty document content", errs.ErrChunking)
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: document title is required", errs.ErrChunking)
	}
	docID := req.ID
	if docID == "" {
		docID = newID()
	}
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", docID), zap.String("title", req.Title))

	chunks := s.split(req)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document produced no chunks", errs.ErrChunking)
	}

	vectors, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	now := time.Now()
	points := make([]vectorindex.Point, 0, len(chunks))
	for i, content := range chunks {
		points = append(points, vectorindex.Point{
			ID:     newID(),
			Vector: vectors[i],
			Payload: map[string]interface{}{
				"content":      content,
				"document_id":  docID,
				"chunk_index":  i,
				"total_chunks": len(chunks),
				"metadata":     chunkMetadata(req, now),
				"created_at":   now.Format(time.RFC3339),
			},
		})
	}

	// Old chunks go first so a reingest never leaves stale points behind.
	if err := s.index.DeleteByDocument(ctx, docID); err != nil {
		return nil, fmt.Errorf("drop existing chunks: %w", err)
	}
	if err := s.index.Upsert(ctx, points); err != nil {
		return nil, fmt.Errorf("index chunks: %w", err)
	}

	if err := s.record(ctx, docID, req, len(chunks), now.Unix()); err != nil {
		return nil, fmt.Errorf("record document: %w", err)
	}
	logger.Info("document processed", zap.Int("chunks", len(chunks)))
	return &model.IngestReport{
		DocumentID:      docID,
		ChunksProcessed: len(chunks),
		Status:          "success",
	}, nil
}

// DeleteDocument removes a document from both the index and the catalog.
func (s *Service) DeleteDocument(ctx context.Context, docID string) error {
	if err := s.index.DeleteByDocument(ctx, docID); err != nil {
		return fmt.Errorf("drop chunks: %w", err)
	}
	if err := s.docs.Delete(ctx, docID); err != nil {
		return err
	}
	return nil
}

func (s *Service) split(req *Request) []string {
	switch strings.ToLower(path.Ext(req.SourcePath)) {
	case ".md", ".mdx", ".markdown":
		return s.splitter.SplitMarkdown(req.Content)
	}
	return s.splitter.Split(req.Content)
}

func (s *Service) record(ctx context.Context, docID string, req *Request, chunkCount int, now int64) error {
	doc := &model.Document{
		ID:          docID,
		Title:       req.Title,
		SourcePath:  req.SourcePath,
		Metadata:    req.Metadata,
		ContentHash: HashContent(req.Content),
		ChunkCount:  chunkCount,
		Ctime:       now,
		Mtime:       now,
	}
	existing, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		if !errs.IsNotFound(err) {
			return err
		}
		return s.docs.Create(ctx, doc)
	}
	doc.Ctime = existing.Ctime
	return s.docs.Update(ctx, doc)
}

func chunkMetadata(req *Request, now time.Time) map[string]interface{} {
	out := make(map[string]interface{}, len(req.Metadata)+3)
	for k, v := range req.Metadata {
		out[k] = v
	}
	out["title"] = req.Title
	if req.SourcePath != "" {
		out["source"] = req.SourcePath
	}
	out["processed_at"] = now.Format(time.RFC3339)
	return out
}

// HashContent fingerprints document content for change detection.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func newID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
