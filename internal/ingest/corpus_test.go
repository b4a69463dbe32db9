package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/ragline/internal/config"
	"github.com/xxxsen/ragline/internal/filestore"
)

func newLocalStore(t *testing.T, dir string) filestore.Store {
	st, err := filestore.New(config.StoreConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": dir},
	})
	require.NoError(t, err)
	return st
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCorpusSyncIngestsAndSkips(t *testing.T) {
	svc, _, cleanup := newService(t)
	defer cleanup()
	dir := t.TempDir()
	writeFile(t, dir, "intro/chapter1.md", "# Chapter One\n\nSome robotics content.")
	writeFile(t, dir, "notes.txt", "Plain text notes.")
	writeFile(t, dir, "image.png", "binary")

	loader := NewCorpusLoader(newLocalStore(t, dir), svc, config.CorpusConfig{
		Extensions: []string{".md", ".txt"},
		Metadata:   map[string]string{"source_kind": "corpus"},
	})
	ctx := context.Background()

	report, err := loader.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.Scanned)
	require.Equal(t, 2, report.Ingested)
	require.Equal(t, 0, report.Failed)

	doc, err := svc.docs.GetBySourcePath(ctx, "intro/chapter1.md")
	require.NoError(t, err)
	require.Equal(t, "Chapter One", doc.Title)
	require.Equal(t, "intro", doc.Metadata["section"])
	require.Equal(t, "corpus", doc.Metadata["source_kind"])

	// Unchanged files are skipped on the next round.
	report, err = loader.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, report.Ingested)
	require.Equal(t, 2, report.Skipped)
}

func TestCorpusSyncReingestsChangedFile(t *testing.T) {
	svc, _, cleanup := newService(t)
	defer cleanup()
	dir := t.TempDir()
	writeFile(t, dir, "doc.md", "# Doc\n\nOriginal body.")

	loader := NewCorpusLoader(newLocalStore(t, dir), svc, config.CorpusConfig{Extensions: []string{".md"}})
	ctx := context.Background()
	_, err := loader.Sync(ctx)
	require.NoError(t, err)
	before, err := svc.docs.GetBySourcePath(ctx, "doc.md")
	require.NoError(t, err)

	writeFile(t, dir, "doc.md", "# Doc\n\nRewritten body.")
	report, err := loader.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Ingested)

	after, err := svc.docs.GetBySourcePath(ctx, "doc.md")
	require.NoError(t, err)
	require.Equal(t, before.ID, after.ID)
	require.NotEqual(t, before.ContentHash, after.ContentHash)
}

func TestCorpusSyncRemovesVanishedFiles(t *testing.T) {
	svc, _, cleanup := newService(t)
	defer cleanup()
	dir := t.TempDir()
	writeFile(t, dir, "keep.md", "# Keep\n\nBody.")
	writeFile(t, dir, "drop.md", "# Drop\n\nBody.")

	loader := NewCorpusLoader(newLocalStore(t, dir), svc, config.CorpusConfig{Extensions: []string{".md"}})
	ctx := context.Background()
	_, err := loader.Sync(ctx)
	require.NoError(t, err)

	// Direct API ingests carry no source path and survive cleanup.
	_, err = svc.ProcessDocument(ctx, &Request{Title: "Manual", Content: "Manual content."})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "drop.md")))
	report, err := loader.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Removed)

	_, err = svc.docs.GetBySourcePath(ctx, "drop.md")
	require.Error(t, err)
	_, err = svc.docs.GetBySourcePath(ctx, "keep.md")
	require.NoError(t, err)

	count, err := svc.docs.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}
