package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParameters_Valid(t *testing.T) {
	params := DefaultParameters()
	require.NoError(t, params.Validate())
}

func TestParameters_RemainderWeights(t *testing.T) {
	params := DefaultParameters()

	assert.InDelta(t, 1.0, params.FundNetBuying+params.NumberFundHoldings+params.NetFundChange(), 1e-12)
	assert.InDelta(t, 1.0, params.ROE+params.RevenueGrowth+params.PE+params.DebtToEquity(), 1e-12)
}

func TestParameters_Validate_GroupSumExceedsOne(t *testing.T) {
	params := DefaultParameters()
	params.FundNetBuying = 0.7
	params.NumberFundHoldings = 0.4

	err := params.Validate()
	require.Error(t, err)
	assert.True(t, IsInvalidParameters(err))
}

func TestParameters_Validate_NegativeWeight(t *testing.T) {
	params := DefaultParameters()
	params.ROE = -0.1

	err := params.Validate()
	require.Error(t, err)
	assert.True(t, IsInvalidParameters(err))
}

func TestParameters_Validate_RiskThresholds(t *testing.T) {
	params := DefaultParameters()
	params.TrailingStopLoss = 0
	assert.Error(t, params.Validate())

	params = DefaultParameters()
	params.TrailingStopLoss = 1.0
	assert.NoError(t, params.Validate(), "a full trailing stop disables the stop without being invalid")

	params = DefaultParameters()
	params.TrailingStopLoss = 1.5
	assert.Error(t, params.Validate())

	params = DefaultParameters()
	params.TakeProfit = 0
	assert.Error(t, params.Validate())
}

func TestParameters_Validate_AllocationMethod(t *testing.T) {
	params := DefaultParameters()
	params.Allocation = AllocationMethod("martingale")
	assert.Error(t, params.Validate())

	for _, m := range []AllocationMethod{AllocationEqual, AllocationLinear, AllocationSoftmax} {
		params.Allocation = m
		assert.NoError(t, params.Validate())
	}
}

func TestParameters_Validate_NStocks(t *testing.T) {
	params := DefaultParameters()
	params.NStocks = 0
	assert.Error(t, params.Validate())
}
