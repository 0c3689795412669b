package optimization

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vqtran/fundfolio/internal/domain"
)

// onGrid reports whether v lies on the quantized grid of r.
func onGrid(r FloatRange, v float64) bool {
	if v < r.Min-1e-9 || v > r.Max+1e-9 {
		return false
	}
	if r.Step <= 0 {
		return true
	}
	steps := (v - r.Min) / r.Step
	return math.Abs(steps-math.Round(steps)) < 1e-9
}

func TestRandomSampler_VectorsAlwaysValid(t *testing.T) {
	sampler := NewRandomSampler()
	space := DefaultSpace()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		params := sampler.Suggest(rng, space, nil)
		require.NoError(t, params.Validate(), "draw %d: %+v", i, params)

		assert.True(t, onGrid(space.TrailingStopLoss, params.TrailingStopLoss))
		assert.True(t, onGrid(space.TakeProfit, params.TakeProfit))
		assert.True(t, onGrid(space.InstitutionalWeight, params.InstitutionalWeight))
		assert.Equal(t, space.NStocks, params.NStocks)
		assert.Contains(t, space.Methods, params.Allocation)
	}
}

func TestRandomSampler_GroupBudgetsRespected(t *testing.T) {
	sampler := NewRandomSampler()
	space := DefaultSpace()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		params := sampler.Suggest(rng, space, nil)

		// The institutional remainder stays strictly positive: one grid step
		// of weight is always reserved for net fund change.
		instSum := params.FundNetBuying + params.NumberFundHoldings
		assert.LessOrEqual(t, instSum, 1.0-space.NumberFundHoldings.Step+1e-9)

		finSum := params.ROE + params.RevenueGrowth + params.PE
		assert.LessOrEqual(t, finSum, 1.0+1e-9)
	}
}

func TestRandomSampler_DeterministicPerSeed(t *testing.T) {
	sampler := NewRandomSampler()
	space := DefaultSpace()

	draw := func(seed int64) []domain.Parameters {
		rng := rand.New(rand.NewSource(seed))
		out := make([]domain.Parameters, 50)
		for i := range out {
			out[i] = sampler.Suggest(rng, space, nil)
		}
		return out
	}

	assert.Equal(t, draw(99), draw(99))
	assert.NotEqual(t, draw(99), draw(100))
}

func TestRandomSampler_NeedsNoHistory(t *testing.T) {
	assert.False(t, NewRandomSampler().NeedsHistory())
	assert.Equal(t, "random", NewRandomSampler().Name())
}
