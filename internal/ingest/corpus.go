package ingest

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/ragline/internal/config"
	"github.com/xxxsen/ragline/internal/filestore"
	"github.com/xxxsen/ragline/internal/pkg/errs"
	"go.uber.org/zap"
)

// SyncReport summarizes one corpus sync round.
type SyncReport struct {
	Scanned  int
	Ingested int
	Skipped  int
	Removed  int
	Failed   int
}

// CorpusLoader keeps the index in step with a document store. Files are
// reingested when their content hash changes and dropped when they disappear
// from the store.
type CorpusLoader struct {
	store      filestore.Store
	service    *Service
	extensions map[string]struct{}
	metadata   map[string]string
}

func NewCorpusLoader(store filestore.Store, service *Service, cfg config.CorpusConfig) *CorpusLoader {
	extensions := make(map[string]struct{}, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		extensions[strings.ToLower(ext)] = struct{}{}
	}
	return &CorpusLoader{
		store:      store,
		service:    service,
		extensions: extensions,
		metadata:   cfg.Metadata,
	}
}

func (l *CorpusLoader) Sync(ctx context.Context) (*SyncReport, error) {
	logger := logutil.GetLogger(ctx)
	entries, err := l.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list corpus: %w", err)
	}

	report := &SyncReport{}
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if _, ok := l.extensions[strings.ToLower(path.Ext(entry.Key))]; !ok {
			continue
		}
		report.Scanned++
		seen[entry.Key] = struct{}{}
		if err := l.syncOne(ctx, entry.Key, report); err != nil {
			report.Failed++
			logger.Error("corpus file sync failed", zap.String("key", entry.Key), zap.Error(err))
		}
	}

	removed, err := l.removeVanished(ctx, seen)
	if err != nil {
		logger.Error("corpus cleanup failed", zap.Error(err))
	}
	report.Removed = removed

	logger.Info("corpus sync finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("ingested", report.Ingested),
		zap.Int("skipped", report.Skipped),
		zap.Int("removed", report.Removed),
		zap.Int("failed", report.Failed))
	return report, nil
}

func (l *CorpusLoader) syncOne(ctx context.Context, key string, report *SyncReport) error {
	r, err := l.store.Open(ctx, key)
	if err != nil {
		return fmt.Errorf("open %s: %w", key, err)
	}
	data, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	content := string(data)

	existing, err := l.service.docs.GetBySourcePath(ctx, key)
	if err != nil && !errs.IsNotFound(err) {
		return err
	}
	req := &Request{
		Title:      titleFor(key, content),
		Content:    content,
		SourcePath: key,
		Metadata:   l.fileMetadata(key),
	}
	if existing != nil {
		if existing.ContentHash == HashContent(content) {
			report.Skipped++
			return nil
		}
		req.ID = existing.ID
	}
	if _, err := l.service.ProcessDocument(ctx, req); err != nil {
		return err
	}
	report.Ingested++
	return nil
}

// removeVanished drops catalog entries whose source file is gone. Documents
// ingested directly through the API have no source path and are never touched.
func (l *CorpusLoader) removeVanished(ctx context.Context, seen map[string]struct{}) (int, error) {
	const pageSize = 200
	var vanished []string
	for offset := 0; ; offset += pageSize {
		docs, err := l.service.docs.List(ctx, offset, pageSize)
		if err != nil {
			return 0, err
		}
		for _, doc := range docs {
			if doc.SourcePath == "" {
				continue
			}
			if _, ok := seen[doc.SourcePath]; !ok {
				vanished = append(vanished, doc.ID)
			}
		}
		if len(docs) < pageSize {
			break
		}
	}
	for i, id := range vanished {
		if err := l.service.DeleteDocument(ctx, id); err != nil {
			return i, err
		}
	}
	return len(vanished), nil
}

func (l *CorpusLoader) fileMetadata(key string) map[string]string {
	out := make(map[string]string, len(l.metadata)+1)
	for k, v := range l.metadata {
		out[k] = v
	}
	if dir := path.Dir(key); dir != "." && dir != "/" {
		out["section"] = dir
	}
	return out
}

// titleFor prefers the first markdown heading, then the file name.
func titleFor(key, content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "# "))
		}
		break
	}
	base := path.Base(key)
	return strings.TrimSuffix(base, path.Ext(base))
}
