package backtest

import (
	"context"
	"errors"
	"testing"

	"crypto-backtest-lab/internal/domain"
	"crypto-backtest-lab/internal/storage"
	"crypto-backtest-lab/internal/storage/memory"
)

const hourMs = 3_600_000

// makeCandles builds an hourly series from closes. Highs sit 2 above the
// close, lows 2 below, so stop/target touches are easy to script.
func makeCandles(closes []float64, startMs int64) []domain.Candle {
	candles := make([]domain.Candle, len(closes))
	for i, c := range closes {
		candles[i] = domain.Candle{
			TimestampMs: startMs + int64(i)*hourMs,
			Open:        c - 1,
			High:        c + 2,
			Low:         c - 2,
			Close:       c,
			Volume:      10,
		}
	}
	return candles
}

func intPtr(i int) *int { return &i }

// crossoverCloses produces exactly one fast-over-slow crossover at index 5
// for fast=2/slow=3, entering at close 100 with the bar after touching the
// default take-profit level.
var crossoverCloses = []float64{100, 99, 98, 97, 96, 100, 106, 107, 108}

func smaConfig() domain.StrategyConfig {
	return domain.StrategyConfig{
		StrategyType: domain.StrategyTypeSMACross,
		FastPeriod:   intPtr(2),
		SlowPeriod:   intPtr(3),
	}
}

func newTestRunner(candleStore storage.CandleStore, resultStore storage.BacktestResultStore, tradeStore storage.ClosedTradeStore) *Runner {
	return NewRunner(RunnerOptions{
		CandleStore: candleStore,
		ResultStore: resultStore,
		TradeStore:  tradeStore,
		Simulator:   domain.DefaultSimulatorConfig(),
	})
}

func TestRunner_Run_PersistsResultAndTrades(t *testing.T) {
	ctx := context.Background()
	candleStore := memory.NewCandleStore()
	resultStore := memory.NewBacktestResultStore()
	tradeStore := memory.NewClosedTradeStore()

	startMs := int64(1_700_000_000_000)
	if err := candleStore.InsertBulk(ctx, "BTCUSDT", domain.Timeframe1h, makeCandles(crossoverCloses, startMs)); err != nil {
		t.Fatalf("seed candles: %v", err)
	}

	runner := newTestRunner(candleStore, resultStore, tradeStore)

	result, err := runner.Run(ctx, RunRequest{
		Symbol:    "BTCUSDT",
		Timeframe: domain.Timeframe1h,
		Strategy:  smaConfig(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.StrategyID != "SMA_CROSS_fast2_slow3" {
		t.Errorf("unexpected strategy id %q", result.StrategyID)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(result.Trades))
	}
	trade := result.Trades[0]
	if trade.ExitReason != domain.ExitReasonTakeProfit {
		t.Errorf("expected take_profit exit, got %s", trade.ExitReason)
	}
	if trade.PnL <= 0 {
		t.Errorf("expected winning trade, got pnl %f", trade.PnL)
	}
	if len(result.EquityCurve) != len(crossoverCloses) {
		t.Errorf("expected %d equity points, got %d", len(crossoverCloses), len(result.EquityCurve))
	}
	if result.FinalEquity <= result.InitialCapital {
		t.Errorf("expected final equity above %f, got %f", result.InitialCapital, result.FinalEquity)
	}
	if result.Summary.TotalTrades != 1 || result.Summary.WinningTrades != 1 {
		t.Errorf("unexpected summary counts: %+v", result.Summary)
	}

	// Persisted result
	stored, err := resultStore.GetByID(ctx, result.RunID)
	if err != nil {
		t.Fatalf("result not persisted: %v", err)
	}
	if stored.FinalEquity != result.FinalEquity {
		t.Errorf("stored equity %f != returned %f", stored.FinalEquity, result.FinalEquity)
	}

	// Persisted trades
	trades, err := tradeStore.GetByRunID(ctx, result.RunID)
	if err != nil {
		t.Fatalf("GetByRunID: %v", err)
	}
	if len(trades) != 1 || trades[0].TradeID != trade.TradeID {
		t.Errorf("unexpected persisted trades: %+v", trades)
	}
}

func TestRunner_Run_DeterministicRunID(t *testing.T) {
	ctx := context.Background()
	startMs := int64(1_700_000_000_000)

	var firstRunID string
	for i := 0; i < 2; i++ {
		candleStore := memory.NewCandleStore()
		if err := candleStore.InsertBulk(ctx, "BTCUSDT", domain.Timeframe1h, makeCandles(crossoverCloses, startMs)); err != nil {
			t.Fatalf("seed candles: %v", err)
		}
		runner := newTestRunner(candleStore, memory.NewBacktestResultStore(), memory.NewClosedTradeStore())

		result, err := runner.Run(ctx, RunRequest{Symbol: "BTCUSDT", Timeframe: domain.Timeframe1h, Strategy: smaConfig()})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if i == 0 {
			firstRunID = result.RunID
		} else if result.RunID != firstRunID {
			t.Errorf("run id not deterministic: %s vs %s", firstRunID, result.RunID)
		}
	}
}

func TestRunner_Run_DuplicateRun(t *testing.T) {
	ctx := context.Background()
	candleStore := memory.NewCandleStore()
	resultStore := memory.NewBacktestResultStore()

	startMs := int64(1_700_000_000_000)
	if err := candleStore.InsertBulk(ctx, "BTCUSDT", domain.Timeframe1h, makeCandles(crossoverCloses, startMs)); err != nil {
		t.Fatalf("seed candles: %v", err)
	}
	runner := newTestRunner(candleStore, resultStore, memory.NewClosedTradeStore())

	req := RunRequest{Symbol: "BTCUSDT", Timeframe: domain.Timeframe1h, Strategy: smaConfig()}
	if _, err := runner.Run(ctx, req); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	_, err := runner.Run(ctx, req)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey on rerun, got %v", err)
	}
}

func TestRunner_Run_NoCandles(t *testing.T) {
	runner := newTestRunner(memory.NewCandleStore(), memory.NewBacktestResultStore(), memory.NewClosedTradeStore())

	_, err := runner.Run(context.Background(), RunRequest{
		Symbol:    "BTCUSDT",
		Timeframe: domain.Timeframe1h,
		Strategy:  smaConfig(),
	})
	if !errors.Is(err, ErrNoCandles) {
		t.Errorf("expected ErrNoCandles, got %v", err)
	}
}

func TestRunner_Run_BadStrategyConfig(t *testing.T) {
	runner := newTestRunner(memory.NewCandleStore(), memory.NewBacktestResultStore(), memory.NewClosedTradeStore())

	_, err := runner.Run(context.Background(), RunRequest{
		Symbol:    "BTCUSDT",
		Timeframe: domain.Timeframe1h,
		Strategy:  domain.StrategyConfig{StrategyType: "UNKNOWN"},
	})
	if err == nil {
		t.Error("expected error for unknown strategy type")
	}
}

func TestRunner_Run_RangeBounds(t *testing.T) {
	ctx := context.Background()
	candleStore := memory.NewCandleStore()

	startMs := int64(1_700_000_000_000)
	if err := candleStore.InsertBulk(ctx, "BTCUSDT", domain.Timeframe1h, makeCandles(crossoverCloses, startMs)); err != nil {
		t.Fatalf("seed candles: %v", err)
	}
	runner := newTestRunner(candleStore, memory.NewBacktestResultStore(), memory.NewClosedTradeStore())

	// Clip to the first 4 bars: no crossover, no trades
	endMs := startMs + 3*hourMs
	result, err := runner.Run(ctx, RunRequest{
		Symbol:    "BTCUSDT",
		Timeframe: domain.Timeframe1h,
		Strategy:  smaConfig(),
		StartMs:   startMs,
		EndMs:     endMs,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.StartMs != startMs || result.EndMs != endMs {
		t.Errorf("unexpected bounds: %d..%d", result.StartMs, result.EndMs)
	}
	if len(result.Trades) != 0 {
		t.Errorf("expected no trades in clipped range, got %d", len(result.Trades))
	}
	if len(result.EquityCurve) != 4 {
		t.Errorf("expected 4 equity points, got %d", len(result.EquityCurve))
	}
}
