package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"deme/internal/model"
)

const runIndexFile = "run_index.json"

// RunArtifacts is everything a finished Monte-Carlo run writes to disk.
type RunArtifacts struct {
	Summary model.RunSummary    `json:"summary"`
	Trials  []model.TrialResult `json:"trials"`
}

// RunIndexEntry is one row of the run index kept alongside the run
// directories so past runs can be listed without opening each one.
type RunIndexEntry struct {
	RunID               string  `json:"run_id"`
	Mutant              string  `json:"mutant"`
	GroupSize           int     `json:"group_size"`
	GroupCount          int     `json:"group_count"`
	Trials              int     `json:"trials"`
	Seed                int64   `json:"seed"`
	Workers             int     `json:"workers"`
	FixationProbability float64 `json:"fixation_probability"`
	RelativeFixation    float64 `json:"relative_fixation"`
	CreatedAtUTC        string  `json:"created_at_utc"`
}

// SweepPoint is the aggregated result of one parameter configuration within
// a benefit/cost sweep.
type SweepPoint struct {
	Benefit float64             `json:"benefit"`
	Cost    float64             `json:"cost"`
	Stats   model.FixationStats `json:"stats"`
}

// WriteRunArtifacts writes summary.json and trials.json under
// baseDir/<runID> and returns the run directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Summary.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Summary.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "summary.json"), artifacts.Summary); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "trials.json"), artifacts.Trials); err != nil {
		return "", err
	}
	return runDir, nil
}

// ReadRunSummary loads summary.json for a run; the bool reports existence.
func ReadRunSummary(baseDir, runID string) (model.RunSummary, bool, error) {
	path := filepath.Join(baseDir, runID, "summary.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.RunSummary{}, false, nil
		}
		return model.RunSummary{}, false, err
	}

	var summary model.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return model.RunSummary{}, false, err
	}
	return summary, true, nil
}

// ReadTrialResults loads trials.json for a run; the bool reports existence.
func ReadTrialResults(baseDir, runID string) ([]model.TrialResult, bool, error) {
	path := filepath.Join(baseDir, runID, "trials.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var trials []model.TrialResult
	if err := json.Unmarshal(data, &trials); err != nil {
		return nil, false, err
	}
	return trials, true, nil
}

// AppendRunIndex inserts or replaces the entry for its run id.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index sorted newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// WriteSweepArtifacts writes sweep.json plus a sweep.csv table with one row
// per configuration, and returns the sweep directory.
func WriteSweepArtifacts(baseDir, sweepID string, points []SweepPoint) (string, error) {
	if sweepID == "" {
		return "", fmt.Errorf("sweep id is required")
	}

	sweepDir := filepath.Join(baseDir, sweepID)
	if err := os.MkdirAll(sweepDir, 0o755); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(sweepDir, "sweep.json"), points); err != nil {
		return "", err
	}

	out, err := os.Create(filepath.Join(sweepDir, "sweep.csv"))
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write([]string{"benefit", "cost", "trials", "mutant_fixed", "fixation_probability", "relative_fixation", "ci_low", "ci_high"}); err != nil {
		return "", err
	}
	for _, p := range points {
		row := []string{
			strconv.FormatFloat(p.Benefit, 'g', -1, 64),
			strconv.FormatFloat(p.Cost, 'g', -1, 64),
			strconv.Itoa(p.Stats.Trials),
			strconv.Itoa(p.Stats.MutantFixed),
			strconv.FormatFloat(p.Stats.FixationProbability, 'g', -1, 64),
			strconv.FormatFloat(p.Stats.RelativeFixation, 'g', -1, 64),
			strconv.FormatFloat(p.Stats.CILow, 'g', -1, 64),
			strconv.FormatFloat(p.Stats.CIHigh, 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sweepDir, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
