package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-backtest-lab/internal/domain"
	"crypto-backtest-lab/internal/storage"
)

func createTestResult(runID, strategyID, symbol string, createdAt int64) *domain.BacktestResult {
	return &domain.BacktestResult{
		RunID:          runID,
		StrategyID:     strategyID,
		Symbol:         symbol,
		Timeframe:      domain.Timeframe1h,
		StartMs:        1_700_000_000_000,
		EndMs:          1_700_360_000_000,
		InitialCapital: 10000,
		FinalEquity:    10432.5,
		Summary: domain.PerformanceSummary{
			TotalTrades:          4,
			WinningTrades:        2,
			LosingTrades:         2,
			WinRate:              0.5,
			AvgWin:               175,
			AvgLoss:              -65,
			LargestWin:           200,
			LargestLoss:          -80,
			Expectancy:           55,
			ProfitFactor:         2.6923,
			SharpeRatio:          1.12,
			MaxDrawdown:          0.08,
			TotalPnL:             432.5,
			TotalPnLPct:          0.04325,
			MaxConsecutiveLosses: 1,
		},
		EquityCurve: []domain.EquityPoint{
			{TimestampMs: 1_700_000_000_000, Equity: 10000},
			{TimestampMs: 1_700_180_000_000, Equity: 10150},
			{TimestampMs: 1_700_360_000_000, Equity: 10432.5},
		},
		CreatedAtMs: createdAt,
	}
}

func TestBacktestResultStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBacktestResultStore(pool)

	r := createTestResult("run-001", "sma_cross_10_30", "BTCUSDT", 1000)
	require.NoError(t, store.Insert(ctx, r))

	got, err := store.GetByID(ctx, "run-001")
	require.NoError(t, err)

	assert.Equal(t, r.StrategyID, got.StrategyID)
	assert.Equal(t, r.Symbol, got.Symbol)
	assert.Equal(t, domain.Timeframe1h, got.Timeframe)
	assert.Equal(t, r.FinalEquity, got.FinalEquity)
	assert.Equal(t, r.Summary, got.Summary)
	require.Len(t, got.EquityCurve, 3)
	assert.Equal(t, r.EquityCurve, got.EquityCurve)
	// Trades are persisted via ClosedTradeStore, not here
	assert.Nil(t, got.Trades)
}

func TestBacktestResultStore_DuplicateRunID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBacktestResultStore(pool)

	require.NoError(t, store.Insert(ctx, createTestResult("run-001", "sma_cross_10_30", "BTCUSDT", 1000)))

	err := store.Insert(ctx, createTestResult("run-001", "rsi_reversion_14", "ETHUSDT", 2000))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Duplicate insert must not leave partial equity curve rows behind
	got, err := store.GetByID(ctx, "run-001")
	require.NoError(t, err)
	assert.Equal(t, "sma_cross_10_30", got.StrategyID)
	assert.Len(t, got.EquityCurve, 3)
}

func TestBacktestResultStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBacktestResultStore(pool)

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBacktestResultStore_GetByStrategy(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBacktestResultStore(pool)

	require.NoError(t, store.Insert(ctx, createTestResult("run-001", "sma_cross_10_30", "BTCUSDT", 2000)))
	require.NoError(t, store.Insert(ctx, createTestResult("run-002", "sma_cross_10_30", "ETHUSDT", 1000)))
	require.NoError(t, store.Insert(ctx, createTestResult("run-003", "rsi_reversion_14", "BTCUSDT", 1500)))

	results, err := store.GetByStrategy(ctx, "sma_cross_10_30")
	require.NoError(t, err)
	require.Len(t, results, 2)

	// created_at ASC
	assert.Equal(t, "run-002", results[0].RunID)
	assert.Equal(t, "run-001", results[1].RunID)
	assert.Len(t, results[0].EquityCurve, 3)
}

func TestBacktestResultStore_GetBySymbolAndGetAll(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBacktestResultStore(pool)

	require.NoError(t, store.Insert(ctx, createTestResult("run-001", "sma_cross_10_30", "BTCUSDT", 2000)))
	require.NoError(t, store.Insert(ctx, createTestResult("run-002", "rsi_reversion_14", "ETHUSDT", 1000)))

	bySymbol, err := store.GetBySymbol(ctx, "ETHUSDT")
	require.NoError(t, err)
	require.Len(t, bySymbol, 1)
	assert.Equal(t, "run-002", bySymbol[0].RunID)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
