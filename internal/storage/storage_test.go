package storage

import (
	"context"
	"path/filepath"
	"testing"

	"deme/internal/model"
)

func sampleSummary(runID, createdAt string) model.RunSummary {
	return model.RunSummary{
		RunID:        runID,
		CreatedAtUTC: createdAt,
		Params: model.Params{
			GroupSize:  5,
			GroupCount: 10,
			Benefit:    3,
			Cost:       1,
			Mutant:     model.Altruist,
		},
		Trials:  100,
		Workers: 4,
		Seed:    42,
		Stats: model.FixationStats{
			Trials:              100,
			MutantFixed:         7,
			IncumbentFixed:      93,
			FixationProbability: 0.07,
			NeutralBaseline:     0.02,
			RelativeFixation:    3.5,
		},
	}
}

func sampleTrials() []model.TrialResult {
	return []model.TrialResult{
		{Trial: 0, Seed: 101, Outcome: model.MutantFixed, Generations: 240},
		{Trial: 1, Seed: 102, Outcome: model.IncumbentFixed, Generations: 18, ClampEvents: 2},
	}
}

func runStoreTests(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if err := store.Init(ctx); err != nil {
		t.Fatalf("unexpected init error: %v", err)
	}

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("unexpected result for missing run: ok=%v err=%v", ok, err)
	}

	first := sampleSummary("run-1", "2026-08-29T10:00:00Z")
	second := sampleSummary("run-2", "2026-08-29T11:00:00Z")
	if err := store.SaveRun(ctx, first); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if err := store.SaveRun(ctx, second); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	got, ok, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if !ok {
		t.Fatalf("saved run not found")
	}
	if got.Params.GroupSize != 5 || got.Stats.MutantFixed != 7 {
		t.Fatalf("run did not round trip: got=%+v", got)
	}
	if got.Params.Mutant != model.Altruist {
		t.Fatalf("mutant strategy did not round trip: got=%v", got.Params.Mutant)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("unexpected run count: got=%d want=2", len(runs))
	}
	if runs[0].RunID != "run-2" {
		t.Fatalf("runs not sorted newest first: got=%s", runs[0].RunID)
	}

	// Saving again with new stats replaces the row.
	first.Stats.MutantFixed = 9
	if err := store.SaveRun(ctx, first); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}
	got, _, err = store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if got.Stats.MutantFixed != 9 {
		t.Fatalf("upsert did not replace run: got=%d want=9", got.Stats.MutantFixed)
	}

	if _, ok, err := store.GetTrials(ctx, "run-1"); err != nil || ok {
		t.Fatalf("unexpected result for missing trials: ok=%v err=%v", ok, err)
	}
	if err := store.SaveTrials(ctx, "run-1", sampleTrials()); err != nil {
		t.Fatalf("unexpected save trials error: %v", err)
	}
	trials, ok, err := store.GetTrials(ctx, "run-1")
	if err != nil {
		t.Fatalf("unexpected get trials error: %v", err)
	}
	if !ok || len(trials) != 2 {
		t.Fatalf("trials did not round trip: ok=%v len=%d", ok, len(trials))
	}
	if trials[0].Outcome != model.MutantFixed || trials[1].ClampEvents != 2 {
		t.Fatalf("trial fields did not round trip: got=%+v", trials)
	}
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "deme.db"))
	defer store.Close()
	runStoreTests(t, store)
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "deme.db"))
	if err := store.SaveRun(context.Background(), sampleSummary("run-1", "2026-08-29T10:00:00Z")); err == nil {
		t.Fatalf("expected error before init, got nil")
	}
}

func TestNewStore(t *testing.T) {
	store, err := NewStore("", "")
	if err != nil {
		t.Fatalf("unexpected factory error: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("unexpected default store: got=%T", store)
	}

	store, err = NewStore("sqlite", filepath.Join(t.TempDir(), "deme.db"))
	if err != nil {
		t.Fatalf("unexpected factory error: %v", err)
	}
	if _, ok := store.(*SQLiteStore); !ok {
		t.Fatalf("unexpected sqlite store: got=%T", store)
	}
	if err := CloseIfSupported(store); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	if _, err := NewStore("bolt", ""); err == nil {
		t.Fatalf("expected error for unknown backend, got nil")
	}
}
