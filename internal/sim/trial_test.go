package sim

import (
	"context"
	"math/rand"
	"testing"

	"deme/internal/model"
)

func TestTrialRunsToAbsorption(t *testing.T) {
	params := testParams()
	params.MaxGenerations = 0 // no cap; small populations absorb quickly

	trial, err := NewTrial(params, rand.New(rand.NewSource(31)))
	if err != nil {
		t.Fatalf("unexpected trial error: %v", err)
	}
	result, err := trial.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if result.Outcome != model.MutantFixed && result.Outcome != model.IncumbentFixed {
		t.Fatalf("unexpected outcome: got=%v", result.Outcome)
	}
	if result.Generations <= 0 {
		t.Fatalf("unexpected generation count: got=%d", result.Generations)
	}
}

func TestTrialReportsCapDistinctly(t *testing.T) {
	params := testParams()
	params.MaxGenerations = 1

	// A single mutant can go extinct in the very first generation, so run a
	// batch of seeds: capped trials must report exactly the cap generation,
	// and one generation can never produce mutant fixation.
	capped := 0
	for seed := int64(0); seed < 50; seed++ {
		trial, err := NewTrial(params, rand.New(rand.NewSource(seed)))
		if err != nil {
			t.Fatalf("unexpected trial error: %v", err)
		}
		result, err := trial.Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected run error: %v", err)
		}
		if result.Generations != 1 {
			t.Fatalf("unexpected generation count for seed %d: got=%d want=1", seed, result.Generations)
		}
		switch result.Outcome {
		case model.CapReached:
			capped++
		case model.IncumbentFixed:
		default:
			t.Fatalf("unexpected outcome for seed %d: got=%v", seed, result.Outcome)
		}
	}
	if capped == 0 {
		t.Fatalf("no trial reported the cap outcome")
	}
}

func TestTrialTraceRecordsMutantSeries(t *testing.T) {
	params := testParams()
	params.MaxGenerations = 50

	trial, err := NewTrial(params, rand.New(rand.NewSource(41)))
	if err != nil {
		t.Fatalf("unexpected trial error: %v", err)
	}
	trial.Trace = true
	result, err := trial.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if len(result.MutantSeries) != result.Generations+1 {
		t.Fatalf("unexpected series length: got=%d want=%d",
			len(result.MutantSeries), result.Generations+1)
	}
	if result.MutantSeries[0] != 1 {
		t.Fatalf("unexpected initial mutant count: got=%d want=1", result.MutantSeries[0])
	}
}

func TestTrialRejectsInvalidParams(t *testing.T) {
	params := testParams()
	params.Benefit = 0.5 // below cost

	if _, err := NewTrial(params, rand.New(rand.NewSource(1))); err == nil {
		t.Fatalf("expected validation error, got nil")
	}
}

func TestTrialHonorsCancellation(t *testing.T) {
	params := testParams()
	params.MaxGenerations = 0

	trial, err := NewTrial(params, rand.New(rand.NewSource(43)))
	if err != nil {
		t.Fatalf("unexpected trial error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := trial.Run(ctx); err != context.Canceled {
		t.Fatalf("unexpected error: got=%v want=%v", err, context.Canceled)
	}
}
