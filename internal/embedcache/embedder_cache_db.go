package embedcache

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/ragline/internal/ai"
	"github.com/xxxsen/ragline/internal/model"
	"github.com/xxxsen/ragline/internal/repo"
	"go.uber.org/zap"
)

func WrapDBCacheToEmbedder(e ai.IEmbedder, cacheRepo *repo.EmbeddingCacheRepo) ai.IEmbedder {
	if e == nil || cacheRepo == nil {
		return e
	}
	return &dbEmbedder{next: e, repo: cacheRepo}
}

type dbEmbedder struct {
	next ai.IEmbedder
	repo *repo.EmbeddingCacheRepo
}

func (d *dbEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if d == nil || d.next == nil {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))
	for i, text := range texts {
		values, ok, err := d.repo.Get(ctx, d.next.ModelName(), contentHash(text))
		if err != nil {
			// cache lookup is best effort; treat a broken cache as a miss
			logutil.GetLogger(ctx).Warn("embedding cache lookup failed", zap.Error(err))
			ok = false
		}
		if ok {
			out[i] = values
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hit (db)", zap.Int("count", len(texts)))
		return out, nil
	}
	fresh, err := d.next.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	for j, i := range missIdx {
		out[i] = fresh[j]
		if err := d.repo.Save(ctx, &model.EmbeddingCache{
			ModelName:   d.next.ModelName(),
			ContentHash: contentHash(missTexts[j]),
			Embedding:   fresh[j],
			Ctime:       now,
		}); err != nil {
			logutil.GetLogger(ctx).Warn("failed to cache embedding", zap.Error(err))
		}
	}
	return out, nil
}

func (d *dbEmbedder) Dimension() int {
	if d == nil || d.next == nil {
		return 0
	}
	return d.next.Dimension()
}

func (d *dbEmbedder) ModelName() string {
	if d == nil || d.next == nil {
		return ""
	}
	return d.next.ModelName()
}
