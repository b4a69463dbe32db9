package job

import (
	"context"

	"github.com/xxxsen/ragline/internal/ingest"
)

type CorpusSyncJob struct {
	loader *ingest.CorpusLoader
}

func NewCorpusSyncJob(loader *ingest.CorpusLoader) *CorpusSyncJob {
	return &CorpusSyncJob{loader: loader}
}

func (j *CorpusSyncJob) Name() string {
	return "corpus_sync"
}

func (j *CorpusSyncJob) Run(ctx context.Context) error {
	if j.loader == nil {
		return nil
	}
	_, err := j.loader.Sync(ctx)
	return err
}
