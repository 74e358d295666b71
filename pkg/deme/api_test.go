package deme

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"deme/internal/model"
	"deme/internal/montecarlo"
	"deme/internal/stats"
)

func testParams() model.Params {
	return model.Params{
		GroupSize:      3,
		GroupCount:     3,
		Benefit:        3,
		Cost:           1,
		Ingroup:        0.8,
		Selection:      0.5,
		Conflict:       0.05,
		Steepness:      0.5,
		Migration:      0.2,
		SplitProb:      0.5,
		Mutant:         model.Altruist,
		MaxGenerations: 200000,
	}
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Options{
		StoreKind:    "sqlite",
		DBPath:       filepath.Join(t.TempDir(), "deme.db"),
		ArtifactsDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("unexpected client error: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	if err := client.Init(context.Background()); err != nil {
		t.Fatalf("unexpected init error: %v", err)
	}
	return client
}

func TestClientRunPersistsAndIndexes(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	summary, err := client.Run(ctx, RunRequest{Params: testParams(), Trials: 32, Seed: 42, Workers: 2})
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if summary.RunID == "" {
		t.Fatalf("run has no id")
	}
	if summary.Stats.Trials != 32 {
		t.Fatalf("unexpected trial count: got=%d want=32", summary.Stats.Trials)
	}

	stored, trials, err := client.Show(ctx, summary.RunID)
	if err != nil {
		t.Fatalf("unexpected show error: %v", err)
	}
	if stored.Seed != 42 || len(trials) != 32 {
		t.Fatalf("run did not round trip: seed=%d trials=%d", stored.Seed, len(trials))
	}

	if _, err := os.Stat(filepath.Join(client.artifactsDir, summary.RunID, "summary.json")); err != nil {
		t.Fatalf("artifacts not written: %v", err)
	}
	index, err := stats.ListRunIndex(client.artifactsDir)
	if err != nil {
		t.Fatalf("unexpected index error: %v", err)
	}
	if len(index) != 1 || index[0].RunID != summary.RunID {
		t.Fatalf("run not indexed: got=%+v", index)
	}

	runs, err := client.Runs(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("unexpected run count: got=%d want=1", len(runs))
	}
}

func TestClientShowFallsBackToArtifacts(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if _, err := stats.WriteRunArtifacts(client.artifactsDir, stats.RunArtifacts{
		Summary: model.RunSummary{RunID: "old-run", Seed: 7},
		Trials:  []model.TrialResult{{Trial: 0, Outcome: model.MutantFixed}},
	}); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	summary, trials, err := client.Show(ctx, "old-run")
	if err != nil {
		t.Fatalf("unexpected show error: %v", err)
	}
	if summary.Seed != 7 || len(trials) != 1 {
		t.Fatalf("artifacts fallback failed: seed=%d trials=%d", summary.Seed, len(trials))
	}

	if _, _, err := client.Show(ctx, "missing"); err == nil {
		t.Fatalf("expected error for missing run, got nil")
	}
}

func TestClientTrialTraces(t *testing.T) {
	client := newTestClient(t)

	result, err := client.Trial(context.Background(), TrialRequest{Params: testParams(), Seed: 13})
	if err != nil {
		t.Fatalf("unexpected trial error: %v", err)
	}
	if result.Seed != 13 {
		t.Fatalf("unexpected seed: got=%d want=13", result.Seed)
	}
	if len(result.MutantSeries) != result.Generations+1 {
		t.Fatalf("unexpected series length: got=%d want=%d",
			len(result.MutantSeries), result.Generations+1)
	}
}

func TestClientSweepWritesArtifacts(t *testing.T) {
	client := newTestClient(t)

	summary, err := client.Sweep(context.Background(), SweepRequest{
		Base: RunRequest{Params: testParams(), Trials: 8, Seed: 42, Workers: 2},
		Points: []montecarlo.BenefitCost{
			{Benefit: 2, Cost: 1},
			{Benefit: 4, Cost: 1},
		},
	})
	if err != nil {
		t.Fatalf("unexpected sweep error: %v", err)
	}
	if len(summary.Points) != 2 {
		t.Fatalf("unexpected point count: got=%d want=2", len(summary.Points))
	}
	if _, err := os.Stat(filepath.Join(summary.Directory, "sweep.csv")); err != nil {
		t.Fatalf("sweep artifacts not written: %v", err)
	}

	if _, err := client.Sweep(context.Background(), SweepRequest{Base: RunRequest{Params: testParams()}}); err == nil {
		t.Fatalf("expected error for empty sweep, got nil")
	}
}
