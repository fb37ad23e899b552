package reporting

import (
	"fmt"
	"strings"

	"crypto-backtest-lab/internal/domain"
)

// RenderCSV renders run metric rows as a CSV string.
func RenderCSV(metrics []RunMetricRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("run_id,strategy_id,symbol,timeframe,total_trades,win_rate,")
	sb.WriteString("total_pnl,total_pnl_pct,profit_factor,sharpe_ratio,")
	sb.WriteString("max_drawdown,expectancy,max_consecutive_losses,final_equity\n")

	// Rows
	for _, m := range metrics {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%d,%.6f,%.6f,%.6f,%s,%.6f,%.6f,%.6f,%d,%.6f\n",
			m.RunID,
			m.StrategyID,
			m.Symbol,
			m.Timeframe,
			m.TotalTrades,
			m.WinRate,
			m.TotalPnL,
			m.TotalPnLPct,
			formatRatio(m.ProfitFactor),
			m.SharpeRatio,
			m.MaxDrawdown,
			m.Expectancy,
			m.MaxConsecutiveLosses,
			m.FinalEquity,
		))
	}

	return sb.String()
}

// RenderTradesCSV renders a run's closed-trade ledger as a CSV string.
func RenderTradesCSV(trades []domain.ClosedTrade) string {
	var sb strings.Builder

	sb.WriteString("trade_id,symbol,strategy,entry_timestamp_ms,exit_timestamp_ms,")
	sb.WriteString("entry_price,exit_price,quantity,side,pnl,pnl_pct,holding_ms,")
	sb.WriteString("exit_reason,entry_commission,exit_commission\n")

	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%d,%d,%.8f,%.8f,%.8f,%s,%.6f,%.6f,%d,%s,%.6f,%.6f\n",
			t.TradeID,
			t.Symbol,
			t.Strategy,
			t.EntryTimestampMs,
			t.ExitTimestampMs,
			t.EntryPrice,
			t.ExitPrice,
			t.Quantity,
			t.Side,
			t.PnL,
			t.PnLPct,
			t.HoldingMs,
			t.ExitReason,
			t.EntryCommission,
			t.ExitCommission,
		))
	}

	return sb.String()
}
