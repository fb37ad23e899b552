package domain

// PerformanceSummary is a read-only aggregate derived from a closed-trade
// ledger and an equity curve. Each Summarize call produces a fresh value;
// nothing here is ever mutated in place.
type PerformanceSummary struct {
	// Counts
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64 // wins / total, 0 when no trades

	// Per-trade P&L
	AvgWin      float64 // mean P&L of winning trades
	AvgLoss     float64 // mean P&L of losing trades (negative)
	LargestWin  float64
	LargestLoss float64
	Expectancy  float64 // expected net P&L per trade

	// Ratios
	ProfitFactor float64 // gross profit / |gross loss|; +Inf if no losses, 0 if no wins
	SharpeRatio  float64 // annualized, per-trade return series; 0 below 2 trades

	// Equity curve
	MaxDrawdown float64 // worst peak-to-trough fraction, 0-1
	TotalPnL    float64 // final equity - initial equity
	TotalPnLPct float64 // relative to initial equity

	// Streaks
	MaxConsecutiveLosses int
}
