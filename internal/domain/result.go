package domain

// StrategyConfig selects and parameterizes a signal source for a run.
type StrategyConfig struct {
	StrategyType string // "SMA_CROSS" | "RSI_REVERSION" | "MACD_CROSS"

	// SMA_CROSS parameters
	FastPeriod *int
	SlowPeriod *int

	// RSI_REVERSION parameters
	RSIPeriod  *int
	Oversold   *float64
	Overbought *float64

	// MACD_CROSS parameters
	SignalPeriod *int

	// Common level parameters
	StopLossPct   *float64
	TakeProfitPct *float64
}

// Strategy type constants.
const (
	StrategyTypeSMACross     = "SMA_CROSS"
	StrategyTypeRSIReversion = "RSI_REVERSION"
	StrategyTypeMACDCross    = "MACD_CROSS"
)

// BacktestResult is the persisted outcome of one simulation run.
// Corresponds to the backtest_results table.
type BacktestResult struct {
	RunID      string // deterministic hash
	StrategyID string
	Symbol     string
	Timeframe  Timeframe

	StartMs int64 // first candle timestamp
	EndMs   int64 // last candle timestamp

	InitialCapital float64
	FinalEquity    float64

	Summary PerformanceSummary

	Trades      []ClosedTrade // chronological ledger, exit order
	EquityCurve []EquityPoint // one point per bar processed

	CreatedAtMs int64
}
