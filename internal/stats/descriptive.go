package stats

import (
	"math"

	"deme/internal/model"
)

// SeriesStats summarizes a series of values.
func SeriesStats(values []float64) (mean, std, max, min float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	min = values[0]
	max = values[0]
	total := 0.0
	for _, value := range values {
		total += value
		if value > max {
			max = value
		}
		if value < min {
			min = value
		}
	}
	mean = total / float64(len(values))
	sumSq := 0.0
	for _, value := range values {
		diff := mean - value
		sumSq += diff * diff
	}
	std = math.Sqrt(sumSq / float64(len(values)))
	return mean, std, max, min
}

// wilsonZ is the normal quantile for a 95% interval.
const wilsonZ = 1.959963984540054

// WilsonInterval is the Wilson score interval for successes out of trials.
// It behaves sensibly at the 0 and 1 boundaries where the normal
// approximation collapses.
func WilsonInterval(successes, trials int) (low, high float64) {
	if trials == 0 {
		return 0, 1
	}
	n := float64(trials)
	p := float64(successes) / n
	z2 := wilsonZ * wilsonZ

	denom := 1 + z2/n
	center := (p + z2/(2*n)) / denom
	margin := wilsonZ * math.Sqrt(p*(1-p)/n+z2/(4*n*n)) / denom

	low = center - margin
	high = center + margin
	if low < 0 {
		low = 0
	}
	if high > 1 {
		high = 1
	}
	return low, high
}

// Aggregate folds per-trial outcomes into fixation statistics against the
// neutral-drift baseline of the given parameters. Capped trials count toward
// the denominator but never toward fixation.
func Aggregate(params model.Params, results []model.TrialResult) model.FixationStats {
	stats := model.FixationStats{
		Trials:          len(results),
		NeutralBaseline: params.NeutralBaseline(),
	}

	generations := make([]float64, 0, len(results))
	for _, r := range results {
		switch r.Outcome {
		case model.MutantFixed:
			stats.MutantFixed++
		case model.IncumbentFixed:
			stats.IncumbentFixed++
		case model.CapReached:
			stats.CapReached++
		}
		generations = append(generations, float64(r.Generations))
	}

	if stats.Trials > 0 {
		stats.FixationProbability = float64(stats.MutantFixed) / float64(stats.Trials)
		stats.RelativeFixation = stats.FixationProbability / stats.NeutralBaseline
		stats.CILow, stats.CIHigh = WilsonInterval(stats.MutantFixed, stats.Trials)
	}
	stats.GenerationsMean, stats.GenerationsStd, stats.GenerationsMax, stats.GenerationsMin = SeriesStats(generations)
	return stats
}
