package reporting

import (
	"context"
	"sort"
	"time"

	"crypto-backtest-lab/internal/domain"
	"crypto-backtest-lab/internal/storage"
)

// notableTradeLimit caps wins and losses in the Notable Trades section each.
const notableTradeLimit = 5

// Generator produces reports from stored backtest data.
type Generator struct {
	resultStore storage.BacktestResultStore
	tradeStore  storage.ClosedTradeStore
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(resultStore storage.BacktestResultStore, tradeStore storage.ClosedTradeStore) *Generator {
	return &Generator{
		resultStore: resultStore,
		tradeStore:  tradeStore,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete report over every stored run.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	results, err := g.resultStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	metrics := generateRunMetrics(results)
	comparison := generateStrategyComparison(results)

	notable, err := g.generateNotableTrades(ctx, results)
	if err != nil {
		return nil, err
	}

	strategySet := make(map[string]struct{})
	symbolSet := make(map[string]struct{})
	for _, r := range results {
		strategySet[r.StrategyID] = struct{}{}
		symbolSet[r.Symbol] = struct{}{}
	}

	return &Report{
		GeneratedAt:        g.now(),
		RunCount:           len(results),
		StrategyCount:      len(strategySet),
		SymbolCount:        len(symbolSet),
		DataSummary:        generateDataSummary(results),
		RunMetrics:         metrics,
		StrategyComparison: comparison,
		NotableTrades:      notable,
	}, nil
}

// generateDataSummary computes coverage counts and the candle date range.
func generateDataSummary(results []*domain.BacktestResult) DataSummary {
	summary := DataSummary{TotalRuns: len(results)}

	for i, r := range results {
		summary.TotalTrades += r.Summary.TotalTrades
		if r.Summary.TotalPnL > 0 {
			summary.ProfitableRuns++
		}
		if i == 0 || r.StartMs < summary.DateRangeStartMs {
			summary.DateRangeStartMs = r.StartMs
		}
		if i == 0 || r.EndMs > summary.DateRangeEndMs {
			summary.DateRangeEndMs = r.EndMs
		}
	}

	return summary
}

// generateRunMetrics flattens results into sorted rows.
func generateRunMetrics(results []*domain.BacktestResult) []RunMetricRow {
	rows := make([]RunMetricRow, len(results))
	for i, r := range results {
		rows[i] = RunMetricRow{
			RunID:                r.RunID,
			StrategyID:           r.StrategyID,
			Symbol:               r.Symbol,
			Timeframe:            r.Timeframe,
			TotalTrades:          r.Summary.TotalTrades,
			WinRate:              r.Summary.WinRate,
			TotalPnL:             r.Summary.TotalPnL,
			TotalPnLPct:          r.Summary.TotalPnLPct,
			ProfitFactor:         r.Summary.ProfitFactor,
			SharpeRatio:          r.Summary.SharpeRatio,
			MaxDrawdown:          r.Summary.MaxDrawdown,
			Expectancy:           r.Summary.Expectancy,
			MaxConsecutiveLosses: r.Summary.MaxConsecutiveLosses,
			FinalEquity:          r.FinalEquity,
		}
	}

	sortRunMetrics(rows)
	return rows
}

// generateStrategyComparison groups runs by strategy and tracks the best and
// worst symbol by net return.
func generateStrategyComparison(results []*domain.BacktestResult) []StrategyComparisonRow {
	groups := make(map[string][]*domain.BacktestResult)
	for _, r := range results {
		groups[r.StrategyID] = append(groups[r.StrategyID], r)
	}

	var rows []StrategyComparisonRow
	for strategyID, runs := range groups {
		row := StrategyComparisonRow{StrategyID: strategyID, Runs: len(runs)}

		var sumWinRate, sumReturnPct float64
		for i, r := range runs {
			row.TotalTrades += r.Summary.TotalTrades
			sumWinRate += r.Summary.WinRate
			sumReturnPct += r.Summary.TotalPnLPct

			if i == 0 || r.Summary.TotalPnLPct > row.BestReturnPct {
				row.BestSymbol = r.Symbol
				row.BestReturnPct = r.Summary.TotalPnLPct
			}
			if i == 0 || r.Summary.TotalPnLPct < row.WorstReturnPct {
				row.WorstSymbol = r.Symbol
				row.WorstReturnPct = r.Summary.TotalPnLPct
			}
		}
		row.AvgWinRate = sumWinRate / float64(len(runs))
		row.AvgReturnPct = sumReturnPct / float64(len(runs))

		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].StrategyID < rows[j].StrategyID
	})

	return rows
}

// generateNotableTrades loads each run's ledger and keeps the largest wins
// and losses by net P&L.
func (g *Generator) generateNotableTrades(ctx context.Context, results []*domain.BacktestResult) ([]NotableTradeRow, error) {
	var all []NotableTradeRow
	for _, r := range results {
		trades, err := g.tradeStore.GetByRunID(ctx, r.RunID)
		if err != nil {
			return nil, err
		}
		for _, t := range trades {
			all = append(all, NotableTradeRow{
				RunID:           r.RunID,
				TradeID:         t.TradeID,
				Symbol:          t.Symbol,
				Strategy:        t.Strategy,
				ExitTimestampMs: t.ExitTimestampMs,
				PnL:             t.PnL,
				PnLPct:          t.PnLPct,
				ExitReason:      t.ExitReason,
			})
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].PnL != all[j].PnL {
			return all[i].PnL > all[j].PnL
		}
		return all[i].TradeID < all[j].TradeID
	})

	var rows []NotableTradeRow
	for i, t := range all {
		if t.PnL > 0 && i < notableTradeLimit {
			rows = append(rows, t)
		}
	}
	losses := 0
	for i := len(all) - 1; i >= 0 && losses < notableTradeLimit; i-- {
		if all[i].PnL <= 0 {
			rows = append(rows, all[i])
			losses++
		}
	}

	return rows, nil
}

// sortRunMetrics sorts rows by (strategy_id, symbol, timeframe).
func sortRunMetrics(rows []RunMetricRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].StrategyID != rows[j].StrategyID {
			return rows[i].StrategyID < rows[j].StrategyID
		}
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		return rows[i].Timeframe < rows[j].Timeframe
	})
}
