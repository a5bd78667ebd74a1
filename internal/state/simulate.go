// File: internal/state/simulate.go
package state

import "math"

// SimResult describes the hypothetical effect of a single buy against one
// token, recomputed with the same volume formulas the preprocessor uses to
// derive the scalar drivers.
type SimResult struct {
	TokenID        string  `json:"token_id"`
	Symbol         string  `json:"symbol"`
	Amount         float64 `json:"amount"`
	EnergyBefore   float64 `json:"energy_before"`
	EnergyAfter    float64 `json:"energy_after"`
	MomentumBefore float64 `json:"momentum_before"`
	MomentumAfter  float64 `json:"momentum_after"`
	ActivityBefore float64 `json:"activity_before"`
	ActivityAfter  float64 `json:"activity_after"`
	FrequencyAfter float64 `json:"frequency_after"`
}

// SimulateBuy recomputes token idx's drivers as if amount of additional buy
// volume had traded. Activity is rescaled against the scene's busiest token.
// Tokens that arrived without raw volumes get a synthetic unit split that
// reproduces their current energy.
func SimulateBuy(sc *Scene, idx int, amount float64) (SimResult, bool) {
	if sc == nil || idx < 0 || idx >= len(sc.Tokens) || amount < 0 {
		return SimResult{}, false
	}
	tok := sc.Tokens[idx]
	buy, sell := tok.BuyVolume, tok.SellVolume
	if buy <= 0 && sell <= 0 {
		buy = tok.Energy
		sell = 1 - tok.Energy
	}
	buy += amount
	total := math.Max(buy+sell, 1e-6)

	maxTotal := total
	for i, t := range sc.Tokens {
		tt := t.BuyVolume + t.SellVolume
		if i == idx {
			tt = total
		}
		if tt > maxTotal {
			maxTotal = tt
		}
	}

	energy := clamp01(buy / total)
	return SimResult{
		TokenID:        tok.ID,
		Symbol:         tok.Symbol,
		Amount:         amount,
		EnergyBefore:   tok.Energy,
		EnergyAfter:    energy,
		MomentumBefore: tok.Momentum,
		MomentumAfter:  math.Max(-1, math.Min(1, (buy-sell)/total)),
		ActivityBefore: tok.Activity,
		ActivityAfter:  clamp01(total / math.Max(maxTotal, 1e-6)),
		FrequencyAfter: 0.18 + energy*1.45,
	}, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
