package montecarlo

import (
	"context"

	"deme/internal/stats"
)

// BenefitCost is one benefit/cost configuration within a sweep.
type BenefitCost struct {
	Benefit float64
	Cost    float64
}

// Sweep runs one batch per benefit/cost pair, holding every other parameter
// fixed. Configurations run sequentially; parallelism lives inside each
// batch. Each configuration reuses the base seed, so two sweeps with the
// same seed are comparable point for point.
func Sweep(ctx context.Context, cfg Config, points []BenefitCost) ([]stats.SweepPoint, error) {
	results := make([]stats.SweepPoint, 0, len(points))
	for _, point := range points {
		params := cfg.Params
		params.Benefit = point.Benefit
		params.Cost = point.Cost

		batch := cfg
		batch.Params = params
		out, err := Run(ctx, batch)
		if err != nil {
			return nil, err
		}
		results = append(results, stats.SweepPoint{
			Benefit: point.Benefit,
			Cost:    point.Cost,
			Stats:   out.Stats,
		})
	}
	return results, nil
}
