package montecarlo

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync"

	"deme/internal/model"
	"deme/internal/sim"
	"deme/internal/stats"
)

// Config drives one batch of independent trials for a single parameter set.
type Config struct {
	Params model.Params
	Trials int
	// Seed is the base seed; each trial derives its own independent stream
	// from it. Zero is a valid seed.
	Seed    int64
	Workers int
	Trace   bool

	// Progress, when set, is called after every completed trial with the
	// number done so far. Calls arrive from the aggregating goroutine only.
	Progress func(done, total int)
}

// Result pairs the per-trial records with their aggregate statistics.
// Trials are ordered by trial index regardless of completion order.
type Result struct {
	Trials []model.TrialResult
	Stats  model.FixationStats
}

// Run executes cfg.Trials independent trials across a worker pool. Workers
// share nothing but the job and result channels; every trial owns its
// population and random stream.
func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.Trials <= 0 {
		return Result{}, fmt.Errorf("trials must be > 0, got %d", cfg.Trials)
	}
	if err := cfg.Params.Validate(); err != nil {
		return Result{}, err
	}

	workerCount := cfg.Workers
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if workerCount > cfg.Trials {
		workerCount = cfg.Trials
	}

	type job struct {
		idx  int
		seed int64
	}
	type outcome struct {
		idx    int
		result model.TrialResult
		err    error
	}

	jobs := make(chan job)
	results := make(chan outcome, workerCount)

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results <- outcome{idx: j.idx, err: err}
					continue
				}

				trial, err := sim.NewTrial(cfg.Params, rand.New(rand.NewSource(j.seed)))
				if err != nil {
					results <- outcome{idx: j.idx, err: err}
					continue
				}
				trial.Trace = cfg.Trace
				result, err := trial.Run(ctx)
				if err != nil {
					results <- outcome{idx: j.idx, err: err}
					continue
				}
				result.Trial = j.idx
				result.Seed = j.seed
				results <- outcome{idx: j.idx, result: result}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < cfg.Trials; i++ {
			select {
			case jobs <- job{idx: i, seed: trialSeed(cfg.Seed, i)}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]model.TrialResult, cfg.Trials)
	done := 0
	var firstErr error
	for out := range results {
		if out.err != nil {
			if firstErr == nil {
				firstErr = out.err
			}
			continue
		}
		collected[out.idx] = out.result
		done++
		if cfg.Progress != nil {
			cfg.Progress(done, cfg.Trials)
		}
	}
	if firstErr == nil && done < cfg.Trials {
		firstErr = ctx.Err()
	}
	if firstErr != nil {
		return Result{}, firstErr
	}

	return Result{
		Trials: collected,
		Stats:  stats.Aggregate(cfg.Params, collected),
	}, nil
}

// trialSeed derives the seed of trial idx from the base seed with a
// splitmix64 round, so consecutive trial indices map to uncorrelated
// streams.
func trialSeed(base int64, idx int) int64 {
	x := uint64(base) + uint64(idx+1)*0x9e3779b97f4a7c15
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return int64(x)
}
