package sim

import (
	"fmt"

	"deme/internal/model"
)

// cooperatesIngroup reports whether a strategy cooperates against a partner
// from its own group. Altruists and parochialists both do. An unknown
// strategy here means group state was corrupted upstream, so it panics
// rather than defaulting to a payoff.
func cooperatesIngroup(s model.Strategy) bool {
	switch s {
	case model.Altruist, model.Parochial:
		return true
	case model.Egoist:
		return false
	default:
		panic(fmt.Sprintf("unknown strategy: %d", int(s)))
	}
}

// cooperatesOutgroup reports whether a strategy cooperates against a partner
// from a different group. Only altruists do.
func cooperatesOutgroup(s model.Strategy) bool {
	switch s {
	case model.Altruist:
		return true
	case model.Egoist, model.Parochial:
		return false
	default:
		panic(fmt.Sprintf("unknown strategy: %d", int(s)))
	}
}

// ingroupPayoff is the donation-game payoff to actor when paired with
// partner from the same group: the actor pays cost c if it cooperates, and
// receives benefit b if the partner cooperates.
func ingroupPayoff(actor, partner model.Strategy, benefit, cost float64) float64 {
	var p float64
	if cooperatesIngroup(partner) {
		p += benefit
	}
	if cooperatesIngroup(actor) {
		p -= cost
	}
	return p
}

// outgroupPayoff is the payoff to actor when paired with partner from a
// different group.
func outgroupPayoff(actor, partner model.Strategy, benefit, cost float64) float64 {
	var p float64
	if cooperatesOutgroup(partner) {
		p += benefit
	}
	if cooperatesOutgroup(actor) {
		p -= cost
	}
	return p
}
