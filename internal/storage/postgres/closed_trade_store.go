package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"crypto-backtest-lab/internal/domain"
	"crypto-backtest-lab/internal/observability"
	"crypto-backtest-lab/internal/storage"
)

// ClosedTradeStore implements storage.ClosedTradeStore using PostgreSQL.
type ClosedTradeStore struct {
	pool *Pool
}

// NewClosedTradeStore creates a new ClosedTradeStore.
func NewClosedTradeStore(pool *Pool) *ClosedTradeStore {
	return &ClosedTradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ClosedTradeStore = (*ClosedTradeStore)(nil)

const tradeColumns = `
	trade_id, run_id, symbol, strategy,
	entry_timestamp_ms, exit_timestamp_ms, entry_price, exit_price,
	quantity, side, pnl, pnl_pct, holding_ms, exit_reason,
	entry_commission, exit_commission
`

// InsertBulk adds all trades of a run atomically. Fails entire batch on any
// duplicate trade_id.
func (s *ClosedTradeStore) InsertBulk(ctx context.Context, runID string, trades []domain.ClosedTrade) (err error) {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(trades) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "insert_closed_trades", time.Since(start).Seconds(), err)
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO closed_trades (` + tradeColumns + `) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14,
			$15, $16
		)
	`

	for _, t := range trades {
		if t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			t.TradeID, runID, t.Symbol, t.Strategy,
			t.EntryTimestampMs, t.ExitTimestampMs, t.EntryPrice, t.ExitPrice,
			t.Quantity, string(t.Side), t.PnL, t.PnLPct, t.HoldingMs, t.ExitReason,
			t.EntryCommission, t.ExitCommission,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert closed trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *ClosedTradeStore) GetByID(ctx context.Context, tradeID string) (*domain.ClosedTrade, error) {
	query := `SELECT ` + tradeColumns + ` FROM closed_trades WHERE trade_id = $1`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, _, err := scanClosedTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get closed trade by id: %w", err)
	}
	return &t, nil
}

// GetByRunID retrieves all trades of a run, ordered by exit time ASC.
func (s *ClosedTradeStore) GetByRunID(ctx context.Context, runID string) ([]domain.ClosedTrade, error) {
	query := `SELECT ` + tradeColumns + ` FROM closed_trades WHERE run_id = $1 ORDER BY exit_timestamp_ms ASC`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query closed trades by run: %w", err)
	}
	defer rows.Close()

	var trades []domain.ClosedTrade
	for rows.Next() {
		t, _, err := scanClosedTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan closed trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate closed trades: %w", err)
	}
	return trades, nil
}

// scanClosedTrade scans one trade row; the second return is the run_id.
func scanClosedTrade(row pgx.Row) (domain.ClosedTrade, string, error) {
	var (
		t     domain.ClosedTrade
		runID string
		side  string
	)
	err := row.Scan(
		&t.TradeID, &runID, &t.Symbol, &t.Strategy,
		&t.EntryTimestampMs, &t.ExitTimestampMs, &t.EntryPrice, &t.ExitPrice,
		&t.Quantity, &side, &t.PnL, &t.PnLPct, &t.HoldingMs, &t.ExitReason,
		&t.EntryCommission, &t.ExitCommission,
	)
	if err != nil {
		return domain.ClosedTrade{}, "", err
	}
	t.Side = domain.Side(side)
	return t, runID, nil
}
