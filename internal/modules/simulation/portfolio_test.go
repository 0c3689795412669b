package simulation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vqtran/fundfolio/internal/domain"
)

var day1 = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
var day2 = time.Date(2023, 6, 2, 0, 0, 0, 0, time.UTC)

func TestBuy_FractionalSharesNoFee(t *testing.T) {
	state := NewState(1000)

	require.NoError(t, state.Buy("AAA", day1, 30, 1000, 0))
	assert.InDelta(t, 0, state.Cash, 1e-9)

	pos := state.Positions["AAA"]
	require.NotNil(t, pos)
	assert.InDelta(t, 1000.0/30.0, pos.Shares, 1e-9)
	assert.InDelta(t, 30, pos.HighWaterPrice, 1e-12)
}

func TestBuy_FeeReducesShares(t *testing.T) {
	state := NewState(1000)

	require.NoError(t, state.Buy("AAA", day1, 100, 1000, 0.0047))
	assert.InDelta(t, 1000/(100*1.0047), state.Positions["AAA"].Shares, 1e-9)
}

func TestBuy_Rejections(t *testing.T) {
	state := NewState(100)

	assert.Error(t, state.Buy("AAA", day1, 10, 0, 0), "zero amount")
	assert.Error(t, state.Buy("AAA", day1, 10, 200, 0), "exceeds cash")
	assert.Error(t, state.Buy("AAA", day1, 0, 50, 0), "non-positive price")

	require.NoError(t, state.Buy("AAA", day1, 10, 50, 0))
	assert.Error(t, state.Buy("AAA", day1, 10, 50, 0), "already open")
}

func TestSell_RealizesPLWithFees(t *testing.T) {
	state := NewState(1000)
	fee := 0.01

	require.NoError(t, state.Buy("AAA", day1, 100, 1000, fee))
	shares := state.Positions["AAA"].Shares

	trade, err := state.Sell("AAA", day2, 120, fee, domain.ExitTakeProfit)
	require.NoError(t, err)

	proceeds := shares * 120 * (1 - fee)
	costBasis := shares * 100 * (1 + fee)
	assert.InDelta(t, proceeds-costBasis, trade.RealizedPL, 1e-9)
	assert.InDelta(t, proceeds, state.Cash, 1e-9)
	assert.Equal(t, domain.ExitTakeProfit, trade.Reason)
	assert.Empty(t, state.Positions)
	assert.Len(t, state.Trades, 1)
}

func TestSell_NoPosition(t *testing.T) {
	state := NewState(100)
	_, err := state.Sell("AAA", day1, 10, 0, domain.ExitRebalance)
	assert.Error(t, err)
}

func TestOpenSymbols_Sorted(t *testing.T) {
	state := NewState(1000)
	require.NoError(t, state.Buy("ZZZ", day1, 10, 100, 0))
	require.NoError(t, state.Buy("AAA", day1, 10, 100, 0))
	require.NoError(t, state.Buy("MMM", day1, 10, 100, 0))

	assert.Equal(t, []string{"AAA", "MMM", "ZZZ"}, state.OpenSymbols())
}

func TestMarkToMarket_UsesLastKnownPrices(t *testing.T) {
	state := NewState(1000)
	require.NoError(t, state.Buy("AAA", day1, 10, 500, 0))

	point := state.MarkToMarket(day1)
	assert.InDelta(t, 1000, point.Equity, 1e-9)
	assert.InDelta(t, 500, point.Cash, 1e-9)

	// A fresh observation reprices the position; a missing one carries the
	// last mark forward.
	state.ObservePrice("AAA", 12)
	point = state.MarkToMarket(day2)
	assert.InDelta(t, 500+50*12, point.Equity, 1e-9)

	point = state.MarkToMarket(day2.AddDate(0, 0, 1))
	assert.InDelta(t, 500+50*12, point.Equity, 1e-9)

	assert.Len(t, state.Equity, 3)
}
