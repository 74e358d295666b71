package storage

import (
	"context"
	"sort"
	"sync"

	"deme/internal/model"
)

type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]model.RunSummary
	trials map[string][]model.TrialResult
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = make(map[string]model.RunSummary)
	s.trials = make(map[string][]model.TrialResult)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, summary model.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[summary.RunID] = summary
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, runID string) (model.RunSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.runs[runID]
	return summary, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunSummary, 0, len(s.runs))
	for _, summary := range s.runs {
		runs = append(runs, summary)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC == runs[j].CreatedAtUTC {
			return runs[i].RunID > runs[j].RunID
		}
		return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
	})
	return runs, nil
}

func (s *MemoryStore) SaveTrials(_ context.Context, runID string, trials []model.TrialResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.TrialResult, len(trials))
	copy(copied, trials)
	s.trials[runID] = copied
	return nil
}

func (s *MemoryStore) GetTrials(_ context.Context, runID string) ([]model.TrialResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trials, ok := s.trials[runID]
	return trials, ok, nil
}
