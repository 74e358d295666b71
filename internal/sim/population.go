package sim

import (
	"math"
	"math/rand"
	"sort"

	"deme/internal/model"
)

// fitnessEpsilon is the floor applied when selection pushes an individual's
// reproduction weight non-positive. Clamping keeps the proportional sampler
// well defined instead of crashing on a degenerate fitness distribution.
const fitnessEpsilon = 1e-9

// Population holds m groups of strategies and mutates them in place one
// generation at a time. It is owned by exactly one trial and is never shared
// across goroutines.
type Population struct {
	params model.Params
	rng    *rand.Rand
	groups [][]model.Strategy

	clampEvents int
}

// NewPopulation seeds GroupCount groups of GroupSize egoists and places a
// single mutant at a uniformly random position.
func NewPopulation(params model.Params, rng *rand.Rand) *Population {
	groups := make([][]model.Strategy, params.GroupCount)
	for i := range groups {
		groups[i] = make([]model.Strategy, params.GroupSize)
	}
	slot := rng.Intn(params.PopulationSize())
	groups[slot/params.GroupSize][slot%params.GroupSize] = params.Mutant

	return &Population{params: params, rng: rng, groups: groups}
}

// Size is the total individual count across all groups. It stays n*m for
// the lifetime of the population.
func (p *Population) Size() int {
	total := 0
	for _, g := range p.groups {
		total += len(g)
	}
	return total
}

// GroupCount is the current number of groups, held at m.
func (p *Population) GroupCount() int {
	return len(p.groups)
}

// Distribution counts individuals per strategy across all groups.
func (p *Population) Distribution() map[model.Strategy]int {
	counts := make(map[model.Strategy]int, 3)
	for _, g := range p.groups {
		for _, s := range g {
			counts[s]++
		}
	}
	return counts
}

// MutantCount is the number of individuals carrying the seeded strategy.
func (p *Population) MutantCount() int {
	return p.Distribution()[p.params.Mutant]
}

// ClampEvents is the number of fitness values floored to epsilon so far.
func (p *Population) ClampEvents() int {
	return p.clampEvents
}

// Absorbed reports whether every individual carries the same strategy, and
// which one.
func (p *Population) Absorbed() (model.Strategy, bool) {
	first := p.groups[0][0]
	for _, g := range p.groups {
		for _, s := range g {
			if s != first {
				return 0, false
			}
		}
	}
	return first, true
}

// Step advances the population by one generation: a birth-death event in
// every group, then a Bernoulli(kappa) conflict draw, then a split pass over
// oversized groups. Order matters and is fixed.
func (p *Population) Step() {
	p.reproduce()
	if p.rng.Float64() < p.params.Conflict {
		p.conflict()
	}
	p.split()
}

// otherGroup draws a uniformly random group index distinct from exclude.
func (p *Population) otherGroup(exclude int) int {
	j := p.rng.Intn(len(p.groups) - 1)
	if j >= exclude {
		j++
	}
	return j
}

// expectedPayoff is the fitness-relevant payoff of the member at position i
// in group g: the ingroup share is the mean donation-game payoff against
// every other member of g, the outgroup share the mean against every member
// of the comparison group out. A singleton group has no ingroup partners and
// contributes zero for that share.
func (p *Population) expectedPayoff(g []model.Strategy, i int, out []model.Strategy) float64 {
	actor := g[i]

	var ingroup float64
	if len(g) > 1 {
		for j, partner := range g {
			if j == i {
				continue
			}
			ingroup += ingroupPayoff(actor, partner, p.params.Benefit, p.params.Cost)
		}
		ingroup /= float64(len(g) - 1)
	}

	var outgroup float64
	for _, partner := range out {
		outgroup += outgroupPayoff(actor, partner, p.params.Benefit, p.params.Cost)
	}
	outgroup /= float64(len(out))

	return p.params.Ingroup*ingroup + (1-p.params.Ingroup)*outgroup
}

// fitness computes the reproduction weights for one group compared against
// the outgroup out. Weights are 1 + w*payoff, floored at epsilon.
func (p *Population) fitness(g []model.Strategy, out []model.Strategy) []float64 {
	weights := make([]float64, len(g))
	for i := range g {
		f := 1 + p.params.Selection*p.expectedPayoff(g, i, out)
		if f <= 0 {
			f = fitnessEpsilon
			p.clampEvents++
		}
		weights[i] = f
	}
	return weights
}

// sampleProportional draws an index with probability proportional to its
// weight. Weights are strictly positive by construction.
func (p *Population) sampleProportional(weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	target := p.rng.Float64() * total
	for i, w := range weights {
		target -= w
		if target < 0 {
			return i
		}
	}
	return len(weights) - 1
}

// reproduce runs one fitness-proportional birth-death event in every group.
// With probability lambda the offspring migrates: it joins a random other
// group and a uniformly random member of the origin dies, so the add and
// remove pair up and the total count is unchanged. A non-migrating offspring
// replaces a uniformly random member of its own group, possibly the parent.
func (p *Population) reproduce() {
	for gi := range p.groups {
		g := p.groups[gi]
		out := p.otherGroup(gi)
		weights := p.fitness(g, p.groups[out])
		parent := p.sampleProportional(weights)
		child := g[parent]

		if p.rng.Float64() < p.params.Migration && len(g) > 1 {
			dest := p.otherGroup(gi)
			p.groups[dest] = append(p.groups[dest], child)
			victim := p.rng.Intn(len(g))
			g[victim] = g[len(g)-1]
			p.groups[gi] = g[:len(g)-1]
		} else {
			g[p.rng.Intn(len(g))] = child
		}
	}
}

// groupStrength is the collective payoff of group g in a contest against
// opponent: the mean member payoff with the opponent standing in as the
// outgroup. Within-group cooperation is what makes a group strong, so
// cohesive groups win conflicts more often.
func (p *Population) groupStrength(g, opponent []model.Strategy) float64 {
	var total float64
	for i := range g {
		total += p.expectedPayoff(g, i, opponent)
	}
	return total / float64(len(g))
}

// conflict stages a contest between two distinct random groups. The winner
// is drawn from a logistic on the strength difference with steepness z, so
// z=0 degenerates to a fair coin. The loser's membership is rebuilt at its
// former head count from the winner's: a verbatim copy when it fits, with
// any remaining slots resampled from the winner, so equal-size groups
// exchange exact composition and the total count never changes.
func (p *Population) conflict() {
	a := p.rng.Intn(len(p.groups))
	b := p.otherGroup(a)

	sa := p.groupStrength(p.groups[a], p.groups[b])
	sb := p.groupStrength(p.groups[b], p.groups[a])

	pWinA := 1 / (1 + math.Exp(-p.params.Steepness*(sa-sb)))
	winner, loser := a, b
	if p.rng.Float64() >= pWinA {
		winner, loser = b, a
	}

	w := p.groups[winner]
	loserSize := len(p.groups[loser])
	replacement := make([]model.Strategy, 0, loserSize)
	if loserSize >= len(w) {
		replacement = append(replacement, w...)
	}
	for len(replacement) < loserSize {
		replacement = append(replacement, w[p.rng.Intn(len(w))])
	}
	p.groups[loser] = replacement
}

// split divides any group whose size exceeds the threshold, with probability
// q per oversized group. Members are ordered by strategy before halving so
// like strategies stay together; the original group is replaced by the two
// halves, and a random other group is disbanded, its members redistributed
// uniformly, to hold the group count at m and the total count at n*m.
func (p *Population) split() {
	threshold := p.params.EffectiveSplitThreshold()
	for gi := 0; gi < len(p.groups); gi++ {
		g := p.groups[gi]
		if len(g) <= threshold || p.rng.Float64() >= p.params.SplitProb {
			continue
		}

		ordered := make([]model.Strategy, len(g))
		copy(ordered, g)
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

		// Cap the first half so later appends reallocate instead of
		// writing into the second half's backing array.
		half := (len(ordered) + 1) / 2
		first := ordered[:half:half]
		second := ordered[half:]

		victim := p.otherGroup(gi)
		displaced := p.groups[victim]

		p.groups[gi] = first
		p.groups[victim] = second

		for _, s := range displaced {
			dest := p.rng.Intn(len(p.groups))
			p.groups[dest] = append(p.groups[dest], s)
		}
	}
}
