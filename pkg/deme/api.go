// Package deme is the embedding API over the simulation engine: it runs
// Monte-Carlo batches, persists their results, and reads past runs back.
package deme

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"deme/internal/model"
	"deme/internal/montecarlo"
	"deme/internal/sim"
	"deme/internal/stats"
	"deme/internal/storage"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultDBPath       = "deme.db"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
}

type Client struct {
	store        storage.Store
	artifactsDir string
}

// RunRequest configures one Monte-Carlo batch. Zero Trials and Workers take
// defaults; a zero Seed draws one from the clock and records it.
type RunRequest struct {
	Params   model.Params
	Trials   int
	Seed     int64
	Workers  int
	Trace    bool
	Progress func(done, total int)
}

// TrialRequest configures a single traced trial.
type TrialRequest struct {
	Params model.Params
	Seed   int64
}

// SweepRequest runs one batch per benefit/cost pair with shared settings.
type SweepRequest struct {
	Base   RunRequest
	Points []montecarlo.BenefitCost
}

// SweepSummary pairs the sweep artifacts directory with its points.
type SweepSummary struct {
	SweepID   string
	Directory string
	Points    []stats.SweepPoint
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}

	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{store: store, artifactsDir: artifactsDir}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Run executes the batch, persists the summary and trials to the store, and
// writes the run artifacts and index entry under the artifacts directory.
func (c *Client) Run(ctx context.Context, req RunRequest) (model.RunSummary, error) {
	if req.Trials <= 0 {
		req.Trials = 1000
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}

	result, err := montecarlo.Run(ctx, montecarlo.Config{
		Params:   req.Params,
		Trials:   req.Trials,
		Seed:     req.Seed,
		Workers:  req.Workers,
		Trace:    req.Trace,
		Progress: req.Progress,
	})
	if err != nil {
		return model.RunSummary{}, err
	}

	summary := model.RunSummary{
		RunID:        uuid.NewString(),
		CreatedAtUTC: time.Now().UTC().Format(time.RFC3339),
		Params:       req.Params,
		Trials:       req.Trials,
		Workers:      req.Workers,
		Seed:         req.Seed,
		Stats:        result.Stats,
	}

	if err := c.store.SaveRun(ctx, summary); err != nil {
		return model.RunSummary{}, fmt.Errorf("save run %s: %w", summary.RunID, err)
	}
	if err := c.store.SaveTrials(ctx, summary.RunID, result.Trials); err != nil {
		return model.RunSummary{}, fmt.Errorf("save trials for run %s: %w", summary.RunID, err)
	}

	if _, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Summary: summary,
		Trials:  result.Trials,
	}); err != nil {
		return model.RunSummary{}, fmt.Errorf("write artifacts for run %s: %w", summary.RunID, err)
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:               summary.RunID,
		Mutant:              req.Params.Mutant.String(),
		GroupSize:           req.Params.GroupSize,
		GroupCount:          req.Params.GroupCount,
		Trials:              req.Trials,
		Seed:                req.Seed,
		Workers:             req.Workers,
		FixationProbability: result.Stats.FixationProbability,
		RelativeFixation:    result.Stats.RelativeFixation,
		CreatedAtUTC:        summary.CreatedAtUTC,
	}); err != nil {
		return model.RunSummary{}, fmt.Errorf("index run %s: %w", summary.RunID, err)
	}

	return summary, nil
}

// Trial runs one trial with tracing on and returns its full record,
// including the per-generation mutant head-count series. Nothing is
// persisted.
func (c *Client) Trial(ctx context.Context, req TrialRequest) (model.TrialResult, error) {
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}
	trial, err := sim.NewTrial(req.Params, rand.New(rand.NewSource(req.Seed)))
	if err != nil {
		return model.TrialResult{}, err
	}
	trial.Trace = true
	result, err := trial.Run(ctx)
	if err != nil {
		return model.TrialResult{}, err
	}
	result.Seed = req.Seed
	return result, nil
}

// Sweep runs the base request once per benefit/cost point and writes the
// sweep artifacts. Individual runs within a sweep are not indexed.
func (c *Client) Sweep(ctx context.Context, req SweepRequest) (SweepSummary, error) {
	if len(req.Points) == 0 {
		return SweepSummary{}, fmt.Errorf("sweep requires at least one benefit/cost point")
	}
	if req.Base.Trials <= 0 {
		req.Base.Trials = 1000
	}
	if req.Base.Seed == 0 {
		req.Base.Seed = time.Now().UnixNano()
	}

	points, err := montecarlo.Sweep(ctx, montecarlo.Config{
		Params:   req.Base.Params,
		Trials:   req.Base.Trials,
		Seed:     req.Base.Seed,
		Workers:  req.Base.Workers,
		Progress: req.Base.Progress,
	}, req.Points)
	if err != nil {
		return SweepSummary{}, err
	}

	sweepID := "sweep-" + uuid.NewString()
	dir, err := stats.WriteSweepArtifacts(c.artifactsDir, sweepID, points)
	if err != nil {
		return SweepSummary{}, err
	}
	return SweepSummary{SweepID: sweepID, Directory: dir, Points: points}, nil
}

// Runs lists past runs from the store, newest first. Limit <= 0 means all.
func (c *Client) Runs(ctx context.Context, limit int) ([]model.RunSummary, error) {
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Show loads one run and its trials. It consults the store first and falls
// back to the artifacts directory, so runs recorded by earlier processes
// with a memory store are still reachable.
func (c *Client) Show(ctx context.Context, runID string) (model.RunSummary, []model.TrialResult, error) {
	summary, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return model.RunSummary{}, nil, err
	}
	if !ok {
		summary, ok, err = stats.ReadRunSummary(c.artifactsDir, runID)
		if err != nil {
			return model.RunSummary{}, nil, err
		}
		if !ok {
			return model.RunSummary{}, nil, fmt.Errorf("run not found: %s", runID)
		}
	}

	trials, ok, err := c.store.GetTrials(ctx, runID)
	if err != nil {
		return model.RunSummary{}, nil, err
	}
	if !ok {
		trials, _, err = stats.ReadTrialResults(c.artifactsDir, runID)
		if err != nil {
			return model.RunSummary{}, nil, err
		}
	}
	return summary, trials, nil
}
