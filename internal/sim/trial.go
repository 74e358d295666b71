package sim

import (
	"context"
	"math/rand"

	"deme/internal/model"
)

// Trial drives one population from its seeded state to absorption.
type Trial struct {
	params model.Params
	rng    *rand.Rand

	// Trace enables per-generation mutant head-count recording. Off by
	// default because long trials can run for millions of generations.
	Trace bool
}

// NewTrial validates the parameters and binds an independent random stream.
func NewTrial(params model.Params, rng *rand.Rand) (*Trial, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Trial{params: params, rng: rng}, nil
}

// Run steps the population until every individual carries the same strategy,
// or the generation cap fires, or ctx is cancelled. The cap is reported as a
// distinct outcome and never counted as fixation.
func (t *Trial) Run(ctx context.Context) (model.TrialResult, error) {
	pop := NewPopulation(t.params, t.rng)
	result := model.TrialResult{}
	if t.Trace {
		result.MutantSeries = append(result.MutantSeries, pop.MutantCount())
	}

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if fixed, ok := pop.Absorbed(); ok {
			result.Outcome = model.IncumbentFixed
			if fixed == t.params.Mutant {
				result.Outcome = model.MutantFixed
			}
			break
		}
		if t.params.MaxGenerations > 0 && result.Generations >= t.params.MaxGenerations {
			result.Outcome = model.CapReached
			break
		}

		pop.Step()
		result.Generations++
		if t.Trace {
			result.MutantSeries = append(result.MutantSeries, pop.MutantCount())
		}
	}

	result.ClampEvents = pop.ClampEvents()
	return result, nil
}
