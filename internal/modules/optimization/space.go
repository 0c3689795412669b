// Package optimization drives a bounded, seeded parameter search over
// repeated backtest runs.
package optimization

import (
	"math"

	"github.com/vqtran/fundfolio/internal/domain"
)

// FloatRange is an inclusive, step-quantized parameter range.
type FloatRange struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// Quantize snaps v onto the range grid and clamps it inside [Min, Max].
func (r FloatRange) Quantize(v float64) float64 {
	if r.Step > 0 {
		v = r.Min + math.Round((v-r.Min)/r.Step)*r.Step
	}
	if v < r.Min {
		v = r.Min
	}
	if v > r.Max {
		v = r.Max
	}
	return v
}

// gridSize returns the number of quantized values in the range.
func (r FloatRange) gridSize() int {
	if r.Step <= 0 || r.Max <= r.Min {
		return 1
	}
	return int(math.Floor((r.Max-r.Min)/r.Step+1e-9)) + 1
}

// value returns the i-th grid value.
func (r FloatRange) value(i int) float64 {
	return r.Quantize(r.Min + float64(i)*r.Step)
}

// Space is the parameter search space. Weight-group dimensions are sampled
// sequentially with conditional upper bounds so that each group's explicit
// weights never sum above 1; the group remainder is absorbed by the reserved
// remainder field, which keeps every sampled vector valid by construction.
type Space struct {
	TrailingStopLoss    FloatRange                `json:"trailing_stop_loss"`
	TakeProfit          FloatRange                `json:"take_profit"`
	InstitutionalWeight FloatRange                `json:"institutional_weight"`
	FundNetBuying       FloatRange                `json:"fund_net_buying"`
	NumberFundHoldings  FloatRange                `json:"number_fund_holdings"`
	ROE                 FloatRange                `json:"roe"`
	RevenueGrowth       FloatRange                `json:"revenue_growth"`
	PE                  FloatRange                `json:"pe"`
	Methods             []domain.AllocationMethod `json:"methods"`
	NStocks             int                       `json:"n_stocks"`
}

// DefaultSpace returns the standard search bounds.
func DefaultSpace() Space {
	return Space{
		TrailingStopLoss:    FloatRange{Min: 0.05, Max: 0.5, Step: 0.025},
		TakeProfit:          FloatRange{Min: 0.05, Max: 0.5, Step: 0.025},
		InstitutionalWeight: FloatRange{Min: 0.025, Max: 0.975, Step: 0.025},
		FundNetBuying:       FloatRange{Min: 0.05, Max: 0.9, Step: 0.025},
		NumberFundHoldings:  FloatRange{Min: 0.05, Max: 0.9, Step: 0.025},
		ROE:                 FloatRange{Min: 0.05, Max: 0.5, Step: 0.025},
		RevenueGrowth:       FloatRange{Min: 0.05, Max: 0.5, Step: 0.025},
		PE:                  FloatRange{Min: 0.05, Max: 0.5, Step: 0.025},
		Methods: []domain.AllocationMethod{
			domain.AllocationSoftmax,
			domain.AllocationEqual,
			domain.AllocationLinear,
		},
		NStocks: 3,
	}
}

// dimension describes one sequentially-sampled float parameter. The
// effective range may depend on fields drawn earlier in the sequence.
type dimension struct {
	name string
	rng  func(space Space, partial domain.Parameters) FloatRange
	get  func(domain.Parameters) float64
	set  func(*domain.Parameters, float64)
}

// capRange lowers the maximum of base so the running group sum stays at or
// below the budget. The minimum is lowered too when the cap falls below it.
func capRange(base FloatRange, budget float64) FloatRange {
	capped := base
	if budget < capped.Max {
		capped.Max = base.Quantize(budget)
	}
	if capped.Max < capped.Min {
		capped.Min = capped.Max
	}
	return capped
}

// dimensions returns the sampling sequence. Order matters: conditional
// ranges read fields set by earlier dimensions.
func dimensions() []dimension {
	return []dimension{
		{
			name: "trailing_stop_loss",
			rng:  func(s Space, _ domain.Parameters) FloatRange { return s.TrailingStopLoss },
			get:  func(p domain.Parameters) float64 { return p.TrailingStopLoss },
			set:  func(p *domain.Parameters, v float64) { p.TrailingStopLoss = v },
		},
		{
			name: "take_profit",
			rng:  func(s Space, _ domain.Parameters) FloatRange { return s.TakeProfit },
			get:  func(p domain.Parameters) float64 { return p.TakeProfit },
			set:  func(p *domain.Parameters, v float64) { p.TakeProfit = v },
		},
		{
			name: "institutional_weight",
			rng:  func(s Space, _ domain.Parameters) FloatRange { return s.InstitutionalWeight },
			get:  func(p domain.Parameters) float64 { return p.InstitutionalWeight },
			set:  func(p *domain.Parameters, v float64) { p.InstitutionalWeight = v },
		},
		{
			name: "fund_net_buying",
			rng:  func(s Space, _ domain.Parameters) FloatRange { return s.FundNetBuying },
			get:  func(p domain.Parameters) float64 { return p.FundNetBuying },
			set:  func(p *domain.Parameters, v float64) { p.FundNetBuying = v },
		},
		{
			name: "number_fund_holdings",
			rng: func(s Space, p domain.Parameters) FloatRange {
				// leave at least one step of weight for net_fund_change
				return capRange(s.NumberFundHoldings, 1.0-p.FundNetBuying-s.NumberFundHoldings.Step)
			},
			get: func(p domain.Parameters) float64 { return p.NumberFundHoldings },
			set: func(p *domain.Parameters, v float64) { p.NumberFundHoldings = v },
		},
		{
			name: "roe",
			rng:  func(s Space, _ domain.Parameters) FloatRange { return s.ROE },
			get:  func(p domain.Parameters) float64 { return p.ROE },
			set:  func(p *domain.Parameters, v float64) { p.ROE = v },
		},
		{
			name: "revenue_growth",
			rng: func(s Space, p domain.Parameters) FloatRange {
				// reserve pe's minimum so its range is never empty
				return capRange(s.RevenueGrowth, 1.0-p.ROE-s.PE.Min)
			},
			get: func(p domain.Parameters) float64 { return p.RevenueGrowth },
			set: func(p *domain.Parameters, v float64) { p.RevenueGrowth = v },
		},
		{
			name: "pe",
			rng: func(s Space, p domain.Parameters) FloatRange {
				return capRange(s.PE, 1.0-p.ROE-p.RevenueGrowth)
			},
			get: func(p domain.Parameters) float64 { return p.PE },
			set: func(p *domain.Parameters, v float64) { p.PE = v },
		},
	}
}
