// Package performance derives descriptive statistics from a closed-trade
// ledger and an equity curve. Everything here is a pure computation:
// identical inputs always produce identical summaries, and degenerate
// inputs (no trades, zero variance, all losers) yield sentinel values
// rather than errors.
package performance

import (
	"math"
	"time"

	"crypto-backtest-lab/internal/domain"
)

const msPerYear = 365 * 24 * float64(time.Hour/time.Millisecond)

// Summarize computes the full performance summary for a run. The
// timeframe annualizes the Sharpe ratio under the 365-day crypto
// convention. An empty ledger or curve is a valid state and returns a
// zero summary.
func Summarize(trades []domain.ClosedTrade, equityCurve []domain.EquityPoint, tf domain.Timeframe) domain.PerformanceSummary {
	summary := domain.PerformanceSummary{
		TotalTrades: len(trades),
		MaxDrawdown: maxDrawdown(equityCurve),
	}

	if len(trades) == 0 {
		return summary
	}

	var grossProfit, grossLoss float64
	for _, t := range trades {
		summary.TotalPnL += t.PnL
		switch {
		case t.Win():
			summary.WinningTrades++
			grossProfit += t.PnL
			if t.PnL > summary.LargestWin {
				summary.LargestWin = t.PnL
			}
		default:
			summary.LosingTrades++
			grossLoss += t.PnL
			if t.PnL < summary.LargestLoss {
				summary.LargestLoss = t.PnL
			}
		}
	}

	summary.WinRate = float64(summary.WinningTrades) / float64(summary.TotalTrades)
	if summary.WinningTrades > 0 {
		summary.AvgWin = grossProfit / float64(summary.WinningTrades)
	}
	if summary.LosingTrades > 0 {
		summary.AvgLoss = grossLoss / float64(summary.LosingTrades)
	}
	summary.Expectancy = summary.WinRate*summary.AvgWin + (1-summary.WinRate)*summary.AvgLoss
	summary.ProfitFactor = profitFactor(grossProfit, grossLoss)
	summary.SharpeRatio = sharpeRatio(trades, tf)
	summary.MaxConsecutiveLosses = maxConsecutiveLosses(trades)

	if len(equityCurve) > 0 && equityCurve[0].Equity > 0 {
		summary.TotalPnLPct = summary.TotalPnL / equityCurve[0].Equity
	}

	return summary
}

// profitFactor is gross profit over absolute gross loss. A ledger with
// wins and no losses returns +Inf; a ledger with no wins returns 0.
func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossProfit / math.Abs(grossLoss)
}

// sharpeRatio computes mean over sample standard deviation of the
// per-trade return series, annualized by the estimated number of trades
// per year. Holding durations from the ledger drive the estimate; when
// they cannot (zero total holding time) the bar rate of the timeframe is
// used instead. Returns 0 below 2 trades or at zero variance.
func sharpeRatio(trades []domain.ClosedTrade, tf domain.Timeframe) float64 {
	n := len(trades)
	if n < 2 {
		return 0
	}

	mean := 0.0
	for _, t := range trades {
		mean += t.PnLPct
	}
	mean /= float64(n)

	sumSq := 0.0
	for _, t := range trades {
		d := t.PnLPct - mean
		sumSq += d * d
	}
	stddev := math.Sqrt(sumSq / float64(n-1))
	if stddev == 0 {
		return 0
	}

	var totalHoldingMs int64
	for _, t := range trades {
		totalHoldingMs += t.HoldingMs
	}

	tradesPerYear := tf.PeriodsPerYear()
	if totalHoldingMs > 0 {
		avgHoldingMs := float64(totalHoldingMs) / float64(n)
		tradesPerYear = msPerYear / avgHoldingMs
	}

	return mean / stddev * math.Sqrt(tradesPerYear)
}

// maxDrawdown is the worst peak-to-trough fractional decline over the
// equity curve, found in a single pass tracking the running peak.
func maxDrawdown(equityCurve []domain.EquityPoint) float64 {
	var peak, maxDD float64
	for _, p := range equityCurve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// maxConsecutiveLosses finds the longest streak of non-winning trades in
// ledger order.
func maxConsecutiveLosses(trades []domain.ClosedTrade) int {
	maxStreak, streak := 0, 0
	for _, t := range trades {
		if !t.Win() {
			streak++
			if streak > maxStreak {
				maxStreak = streak
			}
		} else {
			streak = 0
		}
	}
	return maxStreak
}
