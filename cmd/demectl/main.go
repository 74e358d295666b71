package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"deme/internal/config"
	"deme/internal/model"
	"deme/internal/montecarlo"
	"deme/internal/stats"
	demeapi "deme/pkg/deme"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "trial":
		return runTrial(ctx, args[1:])
	case "sweep":
		return runSweep(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: demectl <run|trial|sweep|runs|show> [flags]", msg)
}

func setupLogger(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "", "info":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: l,
	}))
	slog.SetDefault(logger)
}

// bindConfigFlags registers the flags shared by run, trial, and sweep and
// returns a function that layers any explicitly set flags over cfg.
func bindConfigFlags(fs *flag.FlagSet) (*string, func(cfg *config.Config) error) {
	configPath := fs.String("config", "", "YAML config file")
	groupSize := fs.Int("n", 0, "individuals per group")
	groupCount := fs.Int("m", 0, "number of groups")
	benefit := fs.Float64("b", 0, "cooperation benefit")
	cost := fs.Float64("c", 0, "cooperation cost")
	ingroup := fs.Float64("alpha", 0, "ingroup interaction frequency")
	selection := fs.Float64("w", 0, "selection intensity")
	conflict := fs.Float64("kappa", 0, "conflict frequency")
	steepness := fs.Float64("z", 0, "conflict outcome steepness")
	migration := fs.Float64("lambda", 0, "migration rate")
	splitProb := fs.Float64("q", 0, "split probability")
	mutant := fs.String("mutant", "", "mutant strategy: altruist|parochial")
	splitThreshold := fs.Int("split-threshold", 0, "group size that enables splitting (0 = 2n)")
	maxGens := fs.Int("max-gens", 0, "generation cap per trial")
	trials := fs.Int("trials", 0, "trials per configuration")
	seed := fs.Int64("seed", 0, "base random seed (0 = from clock)")
	workers := fs.Int("workers", 0, "worker goroutines (0 = NumCPU)")
	storeKind := fs.String("store", "", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "", "sqlite database path")
	artifactsDir := fs.String("artifacts", "", "artifacts directory")
	logLevel := fs.String("log-level", "", "log level: debug|info|warn|error")

	apply := func(cfg *config.Config) error {
		var applyErr error
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "n":
				cfg.Params.GroupSize = *groupSize
			case "m":
				cfg.Params.GroupCount = *groupCount
			case "b":
				cfg.Params.Benefit = *benefit
			case "c":
				cfg.Params.Cost = *cost
			case "alpha":
				cfg.Params.Ingroup = *ingroup
			case "w":
				cfg.Params.Selection = *selection
			case "kappa":
				cfg.Params.Conflict = *conflict
			case "z":
				cfg.Params.Steepness = *steepness
			case "lambda":
				cfg.Params.Migration = *migration
			case "q":
				cfg.Params.SplitProb = *splitProb
			case "mutant":
				parsed, err := model.ParseStrategy(*mutant)
				if err != nil {
					applyErr = err
					return
				}
				cfg.Params.Mutant = parsed
			case "split-threshold":
				cfg.Params.SplitThreshold = *splitThreshold
			case "max-gens":
				cfg.Params.MaxGenerations = *maxGens
			case "trials":
				cfg.Trials = *trials
			case "seed":
				cfg.Seed = *seed
			case "workers":
				cfg.Workers = *workers
			case "store":
				cfg.Store = *storeKind
			case "db-path":
				cfg.StorePath = *dbPath
			case "artifacts":
				cfg.ArtifactsDir = *artifactsDir
			case "log-level":
				cfg.LogLevel = *logLevel
			}
		})
		return applyErr
	}
	return configPath, apply
}

func loadConfig(configPath string, apply func(*config.Config) error) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := apply(&cfg); err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	setupLogger(cfg.LogLevel)
	return cfg, nil
}

func newClient(ctx context.Context, cfg config.Config) (*demeapi.Client, error) {
	client, err := demeapi.New(demeapi.Options{
		StoreKind:    cfg.Store,
		DBPath:       cfg.StorePath,
		ArtifactsDir: cfg.ArtifactsDir,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath, apply := bindConfigFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, apply)
	if err != nil {
		return err
	}
	client, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	slog.Info("starting run",
		"mutant", cfg.Params.Mutant,
		"n", cfg.Params.GroupSize,
		"m", cfg.Params.GroupCount,
		"trials", cfg.Trials,
		"seed", cfg.Seed,
	)

	step := cfg.Trials / 10
	if step == 0 {
		step = 1
	}
	summary, err := client.Run(ctx, demeapi.RunRequest{
		Params:  cfg.Params,
		Trials:  cfg.Trials,
		Seed:    cfg.Seed,
		Workers: cfg.Workers,
		Progress: func(done, total int) {
			if done%step == 0 || done == total {
				slog.Debug("progress", "done", done, "total", total)
			}
		},
	})
	if err != nil {
		return err
	}

	printSummary(summary, cfg.ArtifactsDir)
	return nil
}

func printSummary(summary model.RunSummary, artifactsDir string) {
	fmt.Printf("run_id=%s\n", summary.RunID)
	fmt.Printf("trials=%s seed=%d workers=%d\n", humanize.Comma(int64(summary.Trials)), summary.Seed, summary.Workers)
	fmt.Printf("mutant_fixed=%d incumbent_fixed=%d cap_reached=%d\n",
		summary.Stats.MutantFixed, summary.Stats.IncumbentFixed, summary.Stats.CapReached)
	fmt.Printf("fixation_probability=%.6f ci=[%.6f,%.6f]\n",
		summary.Stats.FixationProbability, summary.Stats.CILow, summary.Stats.CIHigh)
	fmt.Printf("neutral_baseline=%.6f relative_fixation=%.4f\n",
		summary.Stats.NeutralBaseline, summary.Stats.RelativeFixation)
	fmt.Printf("generations mean=%.1f std=%.1f min=%.0f max=%.0f\n",
		summary.Stats.GenerationsMean, summary.Stats.GenerationsStd,
		summary.Stats.GenerationsMin, summary.Stats.GenerationsMax)
	if artifactsDir != "" {
		fmt.Printf("artifacts=%s\n", artifactsDir+string(os.PathSeparator)+summary.RunID)
	}
}

func runTrial(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("trial", flag.ContinueOnError)
	configPath, apply := bindConfigFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, apply)
	if err != nil {
		return err
	}
	client, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	result, err := client.Trial(ctx, demeapi.TrialRequest{Params: cfg.Params, Seed: cfg.Seed})
	if err != nil {
		return err
	}

	fmt.Printf("outcome=%s generations=%s seed=%d\n",
		result.Outcome, humanize.Comma(int64(result.Generations)), result.Seed)
	if result.ClampEvents > 0 {
		fmt.Printf("clamp_events=%d\n", result.ClampEvents)
	}
	peak := 0
	for _, count := range result.MutantSeries {
		if count > peak {
			peak = count
		}
	}
	fmt.Printf("mutant_peak=%d of %d\n", peak, cfg.Params.PopulationSize())
	return nil
}

func runSweep(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	configPath, apply := bindConfigFlags(fs)
	benefits := fs.String("benefits", "", "comma-separated benefit values")
	sweepCost := fs.Float64("sweep-cost", 1, "cost shared by all sweep points")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *benefits == "" {
		return fmt.Errorf("sweep requires -benefits, e.g. -benefits 1.5,2,3,5")
	}

	var points []montecarlo.BenefitCost
	for _, field := range strings.Split(*benefits, ",") {
		value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return fmt.Errorf("bad benefit value %q: %w", field, err)
		}
		points = append(points, montecarlo.BenefitCost{Benefit: value, Cost: *sweepCost})
	}

	cfg, err := loadConfig(*configPath, apply)
	if err != nil {
		return err
	}
	client, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	slog.Info("starting sweep", "points", len(points), "trials_per_point", cfg.Trials, "seed", cfg.Seed)

	summary, err := client.Sweep(ctx, demeapi.SweepRequest{
		Base: demeapi.RunRequest{
			Params:  cfg.Params,
			Trials:  cfg.Trials,
			Seed:    cfg.Seed,
			Workers: cfg.Workers,
		},
		Points: points,
	})
	if err != nil {
		return err
	}

	for _, point := range summary.Points {
		fmt.Printf("b=%g c=%g fixation_probability=%.6f relative_fixation=%.4f ci=[%.6f,%.6f]\n",
			point.Benefit, point.Cost,
			point.Stats.FixationProbability, point.Stats.RelativeFixation,
			point.Stats.CILow, point.Stats.CIHigh)
	}
	fmt.Printf("sweep=%s\n", summary.Directory)
	return nil
}

func runRuns(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	artifactsDir := fs.String("artifacts", "artifacts", "artifacts directory")
	limit := fs.Int("limit", 20, "maximum entries to list (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	entries, err := stats.ListRunIndex(*artifactsDir)
	if err != nil {
		return err
	}
	if *limit > 0 && len(entries) > *limit {
		entries = entries[:*limit]
	}
	if len(entries) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	for _, entry := range entries {
		fmt.Printf("%s created=%s mutant=%s n=%d m=%d trials=%s fixation=%.6f relative=%.4f\n",
			entry.RunID, entry.CreatedAtUTC, entry.Mutant,
			entry.GroupSize, entry.GroupCount,
			humanize.Comma(int64(entry.Trials)),
			entry.FixationProbability, entry.RelativeFixation)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath, apply := bindConfigFlags(fs)
	runID := fs.String("run-id", "", "run to show")
	asJSON := fs.Bool("json", false, "print the summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return fmt.Errorf("show requires -run-id")
	}

	cfg, err := loadConfig(*configPath, apply)
	if err != nil {
		return err
	}
	client, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, trials, err := client.Show(ctx, *runID)
	if err != nil {
		return err
	}

	if *asJSON {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	printSummary(summary, "")
	fmt.Printf("params n=%d m=%d b=%g c=%g alpha=%g w=%g kappa=%g z=%g lambda=%g q=%g mutant=%s\n",
		summary.Params.GroupSize, summary.Params.GroupCount,
		summary.Params.Benefit, summary.Params.Cost,
		summary.Params.Ingroup, summary.Params.Selection,
		summary.Params.Conflict, summary.Params.Steepness,
		summary.Params.Migration, summary.Params.SplitProb,
		summary.Params.Mutant)
	fmt.Printf("recorded_trials=%d\n", len(trials))
	return nil
}
