package storage

import (
	"context"

	"deme/internal/model"
)

// Store persists finished runs and their per-trial records.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, summary model.RunSummary) error
	GetRun(ctx context.Context, runID string) (model.RunSummary, bool, error)
	ListRuns(ctx context.Context) ([]model.RunSummary, error)
	SaveTrials(ctx context.Context, runID string, trials []model.TrialResult) error
	GetTrials(ctx context.Context, runID string) ([]model.TrialResult, bool, error)
}

// CloseIfSupported closes stores that hold external resources.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
