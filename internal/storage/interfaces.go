package storage

import (
	"context"

	"crypto-backtest-lab/internal/domain"
)

// CandleStore provides access to OHLCV candle storage.
type CandleStore interface {
	// InsertBulk adds multiple candles for a (symbol, timeframe) series.
	// Fails entire batch on duplicate (symbol, timeframe, timestamp_ms).
	InsertBulk(ctx context.Context, symbol string, timeframe domain.Timeframe, candles []domain.Candle) error

	// GetAll retrieves all candles for a series, ordered by timestamp ASC.
	GetAll(ctx context.Context, symbol string, timeframe domain.Timeframe) ([]domain.Candle, error)

	// GetRange retrieves candles for a series within [start, end] ms (inclusive),
	// ordered by timestamp ASC.
	GetRange(ctx context.Context, symbol string, timeframe domain.Timeframe, start, end int64) ([]domain.Candle, error)
}

// BacktestResultStore provides access to backtest_results storage.
// The trade ledger travels through ClosedTradeStore; results hold the
// run-level fields, summary and equity curve only.
type BacktestResultStore interface {
	// Insert adds a new result. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.BacktestResult) error

	// GetByID retrieves a result by its run ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BacktestResult, error)

	// GetByStrategy retrieves all results for a strategy, ordered by created_at ASC.
	GetByStrategy(ctx context.Context, strategyID string) ([]*domain.BacktestResult, error)

	// GetBySymbol retrieves all results for a symbol, ordered by created_at ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.BacktestResult, error)

	// GetAll retrieves all results, ordered by created_at ASC.
	GetAll(ctx context.Context) ([]*domain.BacktestResult, error)
}

// ClosedTradeStore provides access to closed_trades storage.
type ClosedTradeStore interface {
	// InsertBulk adds all trades of a run atomically. Fails entire batch on
	// any duplicate trade_id.
	InsertBulk(ctx context.Context, runID string, trades []domain.ClosedTrade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.ClosedTrade, error)

	// GetByRunID retrieves all trades of a run, ordered by exit time ASC.
	GetByRunID(ctx context.Context, runID string) ([]domain.ClosedTrade, error)
}
