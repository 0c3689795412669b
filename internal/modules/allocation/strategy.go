// Package allocation converts ranked scores into target cash-weight
// fractions for the selected symbols.
package allocation

import (
	"fmt"
	"math"

	"github.com/vqtran/fundfolio/internal/domain"
	"github.com/vqtran/fundfolio/internal/modules/scoring"
)

// shiftEpsilon keeps linear weights strictly positive after shifting the
// minimum score to zero.
const shiftEpsilon = 1e-9

// Allocate maps the selected, ranked symbols to target cash weights.
// Weights always sum to 1 and every weight is strictly positive. The result
// is deterministic given the selection; no randomness is involved.
func Allocate(selected []scoring.ScoredSymbol, method domain.AllocationMethod) (map[string]float64, error) {
	if len(selected) == 0 {
		return nil, fmt.Errorf("allocation requires a non-empty selection")
	}

	weights := make(map[string]float64, len(selected))
	switch method {
	case domain.AllocationEqual:
		w := 1.0 / float64(len(selected))
		for _, s := range selected {
			weights[s.Symbol] = w
		}

	case domain.AllocationLinear:
		// Shift so the minimum score becomes strictly positive: negative or
		// zero scores would otherwise produce invalid weights.
		minScore := selected[0].Score
		for _, s := range selected[1:] {
			minScore = math.Min(minScore, s.Score)
		}
		shift := 0.0
		if minScore <= 0 {
			shift = -minScore + shiftEpsilon
		}
		var total float64
		for _, s := range selected {
			total += s.Score + shift
		}
		if total <= 0 {
			// All scores identical at the epsilon floor, fall back to equal
			w := 1.0 / float64(len(selected))
			for _, s := range selected {
				weights[s.Symbol] = w
			}
			break
		}
		for _, s := range selected {
			weights[s.Symbol] = (s.Score + shift) / total
		}

	case domain.AllocationSoftmax:
		// Subtract the max before exponentiation for numerical stability.
		maxScore := selected[0].Score
		for _, s := range selected[1:] {
			maxScore = math.Max(maxScore, s.Score)
		}
		var total float64
		exps := make([]float64, len(selected))
		for i, s := range selected {
			exps[i] = math.Exp(s.Score - maxScore)
			total += exps[i]
		}
		for i, s := range selected {
			weights[s.Symbol] = exps[i] / total
		}

	default:
		return nil, fmt.Errorf("unknown allocation method %q", method)
	}

	return weights, nil
}

// Renormalize rescales weights to sum to 1 after some symbols were dropped
// (e.g. a missing buy-day price). Returns nil when nothing remains.
func Renormalize(weights map[string]float64) map[string]float64 {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 || len(weights) == 0 {
		return nil
	}
	out := make(map[string]float64, len(weights))
	for sym, w := range weights {
		out[sym] = w / total
	}
	return out
}
