package stats

import (
	"math"
	"testing"

	"deme/internal/model"
)

func TestSeriesStats(t *testing.T) {
	mean, std, max, min := SeriesStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 {
		t.Fatalf("unexpected mean: got=%v want=5", mean)
	}
	if std != 2 {
		t.Fatalf("unexpected std: got=%v want=2", std)
	}
	if max != 9 || min != 2 {
		t.Fatalf("unexpected extrema: got max=%v min=%v want max=9 min=2", max, min)
	}

	mean, std, max, min = SeriesStats(nil)
	if mean != 0 || std != 0 || max != 0 || min != 0 {
		t.Fatalf("unexpected empty-series stats: got=%v %v %v %v", mean, std, max, min)
	}
}

func TestWilsonInterval(t *testing.T) {
	low, high := WilsonInterval(0, 100)
	if low != 0 {
		t.Fatalf("unexpected lower bound at zero successes: got=%v want=0", low)
	}
	if high <= 0 || high > 0.05 {
		t.Fatalf("unexpected upper bound at zero successes: got=%v", high)
	}

	low, high = WilsonInterval(50, 100)
	if low >= 0.5 || high <= 0.5 {
		t.Fatalf("interval does not bracket the point estimate: got=[%v,%v]", low, high)
	}
	if math.Abs((low+high)/2-0.5) > 1e-9 {
		t.Fatalf("interval not symmetric at p=0.5: got=[%v,%v]", low, high)
	}

	low, high = WilsonInterval(0, 0)
	if low != 0 || high != 1 {
		t.Fatalf("unexpected zero-trial interval: got=[%v,%v]", low, high)
	}
}

func TestAggregate(t *testing.T) {
	params := model.Params{GroupSize: 5, GroupCount: 10}
	results := []model.TrialResult{
		{Outcome: model.MutantFixed, Generations: 100},
		{Outcome: model.IncumbentFixed, Generations: 20},
		{Outcome: model.IncumbentFixed, Generations: 60},
		{Outcome: model.CapReached, Generations: 1000},
	}

	stats := Aggregate(params, results)
	if stats.Trials != 4 {
		t.Fatalf("unexpected trial count: got=%d want=4", stats.Trials)
	}
	if stats.MutantFixed != 1 || stats.IncumbentFixed != 2 || stats.CapReached != 1 {
		t.Fatalf("unexpected outcome counts: got=%+v", stats)
	}
	if stats.FixationProbability != 0.25 {
		t.Fatalf("unexpected fixation probability: got=%v want=0.25", stats.FixationProbability)
	}
	if math.Abs(stats.NeutralBaseline-0.02) > 1e-12 {
		t.Fatalf("unexpected baseline: got=%v want=0.02", stats.NeutralBaseline)
	}
	if math.Abs(stats.RelativeFixation-12.5) > 1e-9 {
		t.Fatalf("unexpected relative fixation: got=%v want=12.5", stats.RelativeFixation)
	}
	if stats.CILow >= 0.25 || stats.CIHigh <= 0.25 {
		t.Fatalf("interval does not bracket the estimate: got=[%v,%v]", stats.CILow, stats.CIHigh)
	}
	if stats.GenerationsMean != 295 {
		t.Fatalf("unexpected mean generations: got=%v want=295", stats.GenerationsMean)
	}
	if stats.GenerationsMin != 20 || stats.GenerationsMax != 1000 {
		t.Fatalf("unexpected generation extrema: got min=%v max=%v", stats.GenerationsMin, stats.GenerationsMax)
	}
}
