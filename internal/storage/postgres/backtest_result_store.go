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

// BacktestResultStore implements storage.BacktestResultStore using PostgreSQL.
// The summary is flattened into columns; the equity curve lives in the
// equity_curve_points child table, written in the same transaction.
type BacktestResultStore struct {
	pool *Pool
}

// NewBacktestResultStore creates a new BacktestResultStore.
func NewBacktestResultStore(pool *Pool) *BacktestResultStore {
	return &BacktestResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BacktestResultStore = (*BacktestResultStore)(nil)

const resultColumns = `
	run_id, strategy_id, symbol, timeframe,
	start_ms, end_ms, initial_capital, final_equity,
	total_trades, winning_trades, losing_trades, win_rate,
	avg_win, avg_loss, largest_win, largest_loss, expectancy,
	profit_factor, sharpe_ratio, max_drawdown,
	total_pnl, total_pnl_pct, max_consecutive_losses,
	created_at_ms
`

// Insert adds a new result. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestResultStore) Insert(ctx context.Context, r *domain.BacktestResult) (err error) {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "insert_backtest_result", time.Since(start).Seconds(), err)
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO backtest_results (` + resultColumns + `) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15, $16, $17,
			$18, $19, $20,
			$21, $22, $23,
			$24
		)
	`

	sum := r.Summary
	_, err = tx.Exec(ctx, query,
		r.RunID, r.StrategyID, r.Symbol, string(r.Timeframe),
		r.StartMs, r.EndMs, r.InitialCapital, r.FinalEquity,
		sum.TotalTrades, sum.WinningTrades, sum.LosingTrades, sum.WinRate,
		sum.AvgWin, sum.AvgLoss, sum.LargestWin, sum.LargestLoss, sum.Expectancy,
		sum.ProfitFactor, sum.SharpeRatio, sum.MaxDrawdown,
		sum.TotalPnL, sum.TotalPnLPct, sum.MaxConsecutiveLosses,
		r.CreatedAtMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest result: %w", err)
	}

	for _, p := range r.EquityCurve {
		_, err := tx.Exec(ctx,
			`INSERT INTO equity_curve_points (run_id, timestamp_ms, equity) VALUES ($1, $2, $3)`,
			r.RunID, p.TimestampMs, p.Equity,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert equity point: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a result by its run ID. Returns ErrNotFound if not exists.
func (s *BacktestResultStore) GetByID(ctx context.Context, runID string) (*domain.BacktestResult, error) {
	query := `SELECT ` + resultColumns + ` FROM backtest_results WHERE run_id = $1`

	row := s.pool.QueryRow(ctx, query, runID)
	r, err := scanResult(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest result by id: %w", err)
	}

	if r.EquityCurve, err = s.equityCurve(ctx, r.RunID); err != nil {
		return nil, err
	}
	return r, nil
}

// GetByStrategy retrieves all results for a strategy, ordered by created_at ASC.
func (s *BacktestResultStore) GetByStrategy(ctx context.Context, strategyID string) ([]*domain.BacktestResult, error) {
	query := `SELECT ` + resultColumns + ` FROM backtest_results WHERE strategy_id = $1 ORDER BY created_at_ms ASC`
	return s.queryResults(ctx, query, strategyID)
}

// GetBySymbol retrieves all results for a symbol, ordered by created_at ASC.
func (s *BacktestResultStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.BacktestResult, error) {
	query := `SELECT ` + resultColumns + ` FROM backtest_results WHERE symbol = $1 ORDER BY created_at_ms ASC`
	return s.queryResults(ctx, query, symbol)
}

// GetAll retrieves all results, ordered by created_at ASC.
func (s *BacktestResultStore) GetAll(ctx context.Context) ([]*domain.BacktestResult, error) {
	query := `SELECT ` + resultColumns + ` FROM backtest_results ORDER BY created_at_ms ASC`
	return s.queryResults(ctx, query)
}

func (s *BacktestResultStore) queryResults(ctx context.Context, query string, args ...any) ([]*domain.BacktestResult, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query backtest results: %w", err)
	}
	defer rows.Close()

	var results []*domain.BacktestResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest results: %w", err)
	}

	for _, r := range results {
		if r.EquityCurve, err = s.equityCurve(ctx, r.RunID); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (s *BacktestResultStore) equityCurve(ctx context.Context, runID string) ([]domain.EquityPoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT timestamp_ms, equity FROM equity_curve_points WHERE run_id = $1 ORDER BY timestamp_ms ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query equity curve: %w", err)
	}
	defer rows.Close()

	var curve []domain.EquityPoint
	for rows.Next() {
		var p domain.EquityPoint
		if err := rows.Scan(&p.TimestampMs, &p.Equity); err != nil {
			return nil, fmt.Errorf("scan equity point: %w", err)
		}
		curve = append(curve, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity curve: %w", err)
	}
	return curve, nil
}

// scanResult scans a single result row. Trades are not populated here;
// they live in closed_trades and travel through ClosedTradeStore.
func scanResult(row pgx.Row) (*domain.BacktestResult, error) {
	var (
		r  domain.BacktestResult
		tf string
	)
	err := row.Scan(
		&r.RunID, &r.StrategyID, &r.Symbol, &tf,
		&r.StartMs, &r.EndMs, &r.InitialCapital, &r.FinalEquity,
		&r.Summary.TotalTrades, &r.Summary.WinningTrades, &r.Summary.LosingTrades, &r.Summary.WinRate,
		&r.Summary.AvgWin, &r.Summary.AvgLoss, &r.Summary.LargestWin, &r.Summary.LargestLoss, &r.Summary.Expectancy,
		&r.Summary.ProfitFactor, &r.Summary.SharpeRatio, &r.Summary.MaxDrawdown,
		&r.Summary.TotalPnL, &r.Summary.TotalPnLPct, &r.Summary.MaxConsecutiveLosses,
		&r.CreatedAtMs,
	)
	if err != nil {
		return nil, err
	}
	r.Timeframe = domain.Timeframe(tf)
	return &r, nil
}
