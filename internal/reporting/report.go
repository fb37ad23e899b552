package reporting

import (
	"time"

	"crypto-backtest-lab/internal/domain"
)

// Report is the aggregate view over all stored backtest runs.
type Report struct {
	// Metadata
	GeneratedAt   time.Time
	RunCount      int
	StrategyCount int
	SymbolCount   int

	// Data Summary
	DataSummary DataSummary

	// Run Metrics (sorted by strategy_id, symbol, timeframe)
	RunMetrics []RunMetricRow

	// Strategy Comparison (one row per strategy, across symbols)
	StrategyComparison []StrategyComparisonRow

	// Notable Trades (largest wins and losses across all runs)
	NotableTrades []NotableTradeRow
}

// DataSummary describes the data the report covers.
type DataSummary struct {
	TotalRuns        int
	ProfitableRuns   int // runs with positive net P&L
	TotalTrades      int
	DateRangeStartMs int64 // earliest candle covered by any run
	DateRangeEndMs   int64 // latest candle covered by any run
}

// RunMetricRow represents one backtest run in the metrics table.
type RunMetricRow struct {
	RunID                string
	StrategyID           string
	Symbol               string
	Timeframe            domain.Timeframe
	TotalTrades          int
	WinRate              float64
	TotalPnL             float64
	TotalPnLPct          float64
	ProfitFactor         float64
	SharpeRatio          float64
	MaxDrawdown          float64
	Expectancy           float64
	MaxConsecutiveLosses int
	FinalEquity          float64
}

// StrategyComparisonRow aggregates one strategy's runs across symbols.
type StrategyComparisonRow struct {
	StrategyID     string
	Runs           int
	TotalTrades    int
	AvgWinRate     float64 // mean over the strategy's runs
	AvgReturnPct   float64
	BestSymbol     string
	BestReturnPct  float64
	WorstSymbol    string
	WorstReturnPct float64
}

// NotableTradeRow is one extreme trade referenced back to its run.
type NotableTradeRow struct {
	RunID           string
	TradeID         string
	Symbol          string
	Strategy        string
	ExitTimestampMs int64
	PnL             float64
	PnLPct          float64
	ExitReason      string
}
