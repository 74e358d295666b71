package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Strategy is the behavioral type carried by an individual. Egoists defect
// against everyone; altruists cooperate with everyone; parochialists
// cooperate only within their own group.
type Strategy int

const (
	Egoist Strategy = iota
	Altruist
	Parochial
)

func (s Strategy) String() string {
	switch s {
	case Egoist:
		return "egoist"
	case Altruist:
		return "altruist"
	case Parochial:
		return "parochial"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy maps a string label to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "egoist":
		return Egoist, nil
	case "altruist":
		return Altruist, nil
	case "parochial", "parochialist":
		return Parochial, nil
	default:
		return 0, fmt.Errorf("unknown strategy: %s", s)
	}
}

// MarshalText implements encoding.TextMarshaler so Strategy round-trips
// through JSON and YAML as its label.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalYAML keeps the label form in config files; yaml.v3 does not
// consult encoding.TextMarshaler.
func (s Strategy) MarshalYAML() (any, error) {
	return s.String(), nil
}

func (s *Strategy) UnmarshalYAML(value *yaml.Node) error {
	var label string
	if err := value.Decode(&label); err != nil {
		return err
	}
	parsed, err := ParseStrategy(label)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Outcome is the terminal state of one trial.
type Outcome string

const (
	// MutantFixed means the seeded mutant strategy occupies every slot.
	MutantFixed Outcome = "mutant_fixed"
	// IncumbentFixed means the egoist incumbent reclaimed every slot.
	IncumbentFixed Outcome = "incumbent_fixed"
	// CapReached means the generation cap fired before absorption. This is
	// an operational artifact, never a fixation result.
	CapReached Outcome = "cap_reached"
)

// Params is the immutable per-trial configuration. It is constructed once,
// validated before any simulation starts, and read-only thereafter.
type Params struct {
	GroupSize  int     `json:"group_size" yaml:"group_size" env:"GROUP_SIZE"`    // n
	GroupCount int     `json:"group_count" yaml:"group_count" env:"GROUP_COUNT"` // m
	Benefit    float64 `json:"benefit" yaml:"benefit" env:"BENEFIT"`             // b
	Cost       float64 `json:"cost" yaml:"cost" env:"COST"`                      // c
	Ingroup    float64 `json:"ingroup" yaml:"ingroup" env:"INGROUP"`             // alpha
	Selection  float64 `json:"selection" yaml:"selection" env:"SELECTION"`       // w
	Conflict   float64 `json:"conflict" yaml:"conflict" env:"CONFLICT"`          // kappa
	Steepness  float64 `json:"steepness" yaml:"steepness" env:"STEEPNESS"`       // z
	Migration  float64 `json:"migration" yaml:"migration" env:"MIGRATION"`       // lambda
	SplitProb  float64 `json:"split_prob" yaml:"split_prob" env:"SPLIT_PROB"`    // q

	// Mutant is the strategy seeded into one individual at trial start.
	Mutant Strategy `json:"mutant" yaml:"mutant" env:"MUTANT"`

	// SplitThreshold is the group size above which splitting becomes
	// eligible. Zero means 2*GroupSize.
	SplitThreshold int `json:"split_threshold,omitempty" yaml:"split_threshold,omitempty" env:"SPLIT_THRESHOLD"`

	// MaxGenerations caps a trial that fails to absorb. Zero disables the
	// cap, which is only sensible in tests.
	MaxGenerations int `json:"max_generations" yaml:"max_generations" env:"MAX_GENERATIONS"`
}

// PopulationSize is the invariant total individual count n*m.
func (p Params) PopulationSize() int {
	return p.GroupSize * p.GroupCount
}

// NeutralBaseline is the fixation probability of a single mutant under pure
// drift, 1/(n*m).
func (p Params) NeutralBaseline() float64 {
	return 1.0 / float64(p.PopulationSize())
}

// EffectiveSplitThreshold resolves the zero-value default of 2n.
func (p Params) EffectiveSplitThreshold() int {
	if p.SplitThreshold > 0 {
		return p.SplitThreshold
	}
	return 2 * p.GroupSize
}

// Validate rejects out-of-range parameters before any simulation starts.
// Each error names the offending field and value.
func (p Params) Validate() error {
	if p.GroupSize < 2 {
		return fmt.Errorf("group_size must be >= 2, got %d", p.GroupSize)
	}
	if p.GroupCount < 2 {
		return fmt.Errorf("group_count must be >= 2, got %d", p.GroupCount)
	}
	if p.Cost <= 0 {
		return fmt.Errorf("cost must be > 0, got %g", p.Cost)
	}
	if p.Benefit <= p.Cost {
		return fmt.Errorf("benefit must exceed cost, got benefit=%g cost=%g", p.Benefit, p.Cost)
	}
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"ingroup", p.Ingroup},
		{"selection", p.Selection},
		{"conflict", p.Conflict},
		{"steepness", p.Steepness},
		{"migration", p.Migration},
		{"split_prob", p.SplitProb},
	} {
		if field.value < 0 || field.value > 1 {
			return fmt.Errorf("%s must be in [0,1], got %g", field.name, field.value)
		}
	}
	if p.Mutant != Altruist && p.Mutant != Parochial {
		return fmt.Errorf("mutant must be altruist or parochial, got %s", p.Mutant)
	}
	if p.SplitThreshold < 0 {
		return fmt.Errorf("split_threshold must be >= 0, got %d", p.SplitThreshold)
	}
	if p.MaxGenerations < 0 {
		return fmt.Errorf("max_generations must be >= 0, got %d", p.MaxGenerations)
	}
	return nil
}

// TrialResult is the terminal record of one trial.
type TrialResult struct {
	Trial       int     `json:"trial"`
	Seed        int64   `json:"seed"`
	Outcome     Outcome `json:"outcome"`
	Generations int     `json:"generations"`
	ClampEvents int     `json:"clamp_events,omitempty"`

	// MutantSeries holds the mutant head count per generation when the
	// trial ran with tracing enabled.
	MutantSeries []int `json:"mutant_series,omitempty"`
}

// FixationStats aggregates trial outcomes into the empirical fixation
// probability and its ratio to the neutral-drift baseline.
type FixationStats struct {
	Trials         int `json:"trials"`
	MutantFixed    int `json:"mutant_fixed"`
	IncumbentFixed int `json:"incumbent_fixed"`
	CapReached     int `json:"cap_reached"`

	FixationProbability float64 `json:"fixation_probability"`
	NeutralBaseline     float64 `json:"neutral_baseline"`
	RelativeFixation    float64 `json:"relative_fixation"`

	// Wilson 95% interval on the fixation probability.
	CILow  float64 `json:"ci_low"`
	CIHigh float64 `json:"ci_high"`

	GenerationsMean float64 `json:"generations_mean"`
	GenerationsStd  float64 `json:"generations_std"`
	GenerationsMin  float64 `json:"generations_min"`
	GenerationsMax  float64 `json:"generations_max"`
}

// RunSummary is the persisted record of one Monte-Carlo run.
type RunSummary struct {
	RunID        string        `json:"run_id"`
	CreatedAtUTC string        `json:"created_at_utc"`
	Params       Params        `json:"params"`
	Trials       int           `json:"trials"`
	Workers      int           `json:"workers"`
	Seed         int64         `json:"seed"`
	Stats        FixationStats `json:"stats"`
}
