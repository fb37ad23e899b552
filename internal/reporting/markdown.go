package reporting

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Runs: %d | Strategies: %d | Symbols: %d\n\n",
		r.RunCount, r.StrategyCount, r.SymbolCount))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Runs | %d |\n", r.DataSummary.TotalRuns))
	sb.WriteString(fmt.Sprintf("| Profitable Runs | %d |\n", r.DataSummary.ProfitableRuns))
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", r.DataSummary.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Date Range Start (ms) | %d |\n", r.DataSummary.DateRangeStartMs))
	sb.WriteString(fmt.Sprintf("| Date Range End (ms) | %d |\n", r.DataSummary.DateRangeEndMs))
	sb.WriteString("\n")

	// Run Metrics
	sb.WriteString("## Run Metrics\n\n")
	if len(r.RunMetrics) > 0 {
		sb.WriteString("| Strategy | Symbol | TF | Trades | WinRate | PnL | PnL% | PF | Sharpe | MaxDD | Expectancy | MaxLossStreak | FinalEquity |\n")
		sb.WriteString("|----------|--------|----|--------|---------|-----|------|----|--------|-------|------------|---------------|-------------|\n")
		for _, m := range r.RunMetrics {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %.4f | %.2f | %.4f | %s | %.4f | %.4f | %.2f | %d | %.2f |\n",
				m.StrategyID, m.Symbol, m.Timeframe,
				m.TotalTrades, m.WinRate, m.TotalPnL, m.TotalPnLPct,
				formatRatio(m.ProfitFactor), m.SharpeRatio, m.MaxDrawdown,
				m.Expectancy, m.MaxConsecutiveLosses, m.FinalEquity))
		}
	} else {
		sb.WriteString("No runs available.\n")
	}
	sb.WriteString("\n")

	// Strategy Comparison
	sb.WriteString("## Strategy Comparison\n\n")
	if len(r.StrategyComparison) > 0 {
		sb.WriteString("| Strategy | Runs | Trades | Avg WinRate | Avg Return% | Best Symbol | Best% | Worst Symbol | Worst% |\n")
		sb.WriteString("|----------|------|--------|-------------|-------------|-------------|-------|--------------|--------|\n")
		for _, c := range r.StrategyComparison {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.4f | %.4f | %s | %.4f | %s | %.4f |\n",
				c.StrategyID, c.Runs, c.TotalTrades,
				c.AvgWinRate, c.AvgReturnPct,
				c.BestSymbol, c.BestReturnPct,
				c.WorstSymbol, c.WorstReturnPct))
		}
	} else {
		sb.WriteString("No strategy comparison available.\n")
	}
	sb.WriteString("\n")

	// Notable Trades
	sb.WriteString("## Notable Trades\n\n")
	if len(r.NotableTrades) > 0 {
		sb.WriteString("| Strategy | Symbol | Exit (ms) | PnL | PnL% | Reason | Run |\n")
		sb.WriteString("|----------|--------|-----------|-----|------|--------|-----|\n")
		for _, t := range r.NotableTrades {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %.2f | %.4f | %s | %s |\n",
				t.Strategy, t.Symbol, t.ExitTimestampMs,
				t.PnL, t.PnLPct, t.ExitReason, t.RunID))
		}
	} else {
		sb.WriteString("No trades recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// formatRatio prints profit factor, which is +Inf for a run with wins and
// no losses.
func formatRatio(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.4f", v)
}
