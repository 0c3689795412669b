package domain

// Parameters is the full strategy parameter vector: score weights, risk
// thresholds and the allocation method.
//
// Weight groups are completed by a reserved remainder field rather than
// normalized after the fact: the institutional group carries explicit
// weights for fund_net_buying and number_fund_holdings and assigns
// 1 - (sum) to net_fund_change; the financial group carries explicit
// weights for roe, revenue_growth and pe and assigns 1 - (sum) to
// debt_to_equity. Each group therefore sums to exactly 1 by construction
// whenever Validate passes.
type Parameters struct {
	// Institutional group weights
	FundNetBuying      float64 `json:"fund_net_buying"`
	NumberFundHoldings float64 `json:"number_fund_holdings"`

	// Financial group weights
	ROE           float64 `json:"roe"`
	RevenueGrowth float64 `json:"revenue_growth"`
	PE            float64 `json:"pe"`

	// Blend between the institutional and financial sub-scores
	InstitutionalWeight float64 `json:"institutional_weight"`

	// Risk management thresholds, as fractions of price
	TrailingStopLoss float64 `json:"trailing_stop_loss"`
	TakeProfit       float64 `json:"take_profit"`

	Allocation AllocationMethod `json:"stock_weight_option"`

	// NStocks is the number of top-ranked symbols selected each cycle
	NStocks int `json:"n_stocks"`
}

// NetFundChange returns the implied remainder weight of the institutional group.
func (p Parameters) NetFundChange() float64 {
	return 1.0 - p.FundNetBuying - p.NumberFundHoldings
}

// DebtToEquity returns the implied remainder weight of the financial group.
func (p Parameters) DebtToEquity() float64 {
	return 1.0 - p.ROE - p.RevenueGrowth - p.PE
}

// Validate checks the parameter vector. Weight groups must not exceed 1 and
// every explicit weight must be non-negative; the simulator must never run
// with a vector that fails here.
func (p Parameters) Validate() error {
	check := func(field string, v float64) *InvalidParametersError {
		if v < 0 {
			return &InvalidParametersError{Field: field, Reason: "must be non-negative"}
		}
		return nil
	}
	for _, c := range []struct {
		field string
		value float64
	}{
		{"fund_net_buying", p.FundNetBuying},
		{"number_fund_holdings", p.NumberFundHoldings},
		{"roe", p.ROE},
		{"revenue_growth", p.RevenueGrowth},
		{"pe", p.PE},
	} {
		if err := check(c.field, c.value); err != nil {
			return err
		}
	}
	// tolerance absorbs float error from step-quantized weight grids
	const weightTol = 1e-9
	if p.FundNetBuying+p.NumberFundHoldings > 1.0+weightTol {
		return &InvalidParametersError{Field: "institutional weights", Reason: "group sum exceeds 1"}
	}
	if p.ROE+p.RevenueGrowth+p.PE > 1.0+weightTol {
		return &InvalidParametersError{Field: "financial weights", Reason: "group sum exceeds 1"}
	}
	if p.InstitutionalWeight < 0 || p.InstitutionalWeight > 1 {
		return &InvalidParametersError{Field: "institutional_weight", Reason: "must be in [0, 1]"}
	}
	if p.TrailingStopLoss <= 0 || p.TrailingStopLoss > 1 {
		return &InvalidParametersError{Field: "trailing_stop_loss", Reason: "must be in (0, 1]"}
	}
	if p.TakeProfit <= 0 {
		return &InvalidParametersError{Field: "take_profit", Reason: "must be positive"}
	}
	if !p.Allocation.Valid() {
		return &InvalidParametersError{Field: "stock_weight_option", Reason: "unknown allocation method"}
	}
	if p.NStocks < 1 {
		return &InvalidParametersError{Field: "n_stocks", Reason: "must be at least 1"}
	}
	return nil
}

// DefaultParameters returns the baseline configuration used for plain
// (non-optimizing) backtest runs.
func DefaultParameters() Parameters {
	return Parameters{
		FundNetBuying:       0.45,
		NumberFundHoldings:  0.35,
		ROE:                 0.30,
		RevenueGrowth:       0.15,
		PE:                  0.35,
		InstitutionalWeight: 0.6,
		TrailingStopLoss:    0.25,
		TakeProfit:          0.35,
		Allocation:          AllocationEqual,
		NStocks:             3,
	}
}
