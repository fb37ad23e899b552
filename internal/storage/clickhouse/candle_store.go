package clickhouse

import (
	"context"
	"fmt"
	"time"

	"crypto-backtest-lab/internal/domain"
	"crypto-backtest-lab/internal/observability"
	"crypto-backtest-lab/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
// MergeTree does not enforce uniqueness, so duplicates are detected with
// explicit lookups before the batch insert.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk adds multiple candles for a (symbol, timeframe) series.
// Fails entire batch on duplicate (symbol, timeframe, timestamp_ms).
func (s *CandleStore) InsertBulk(ctx context.Context, symbol string, timeframe domain.Timeframe, candles []domain.Candle) (err error) {
	if symbol == "" || !timeframe.Valid() {
		return storage.ErrInvalidInput
	}
	if len(candles) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "insert_candles", time.Since(start).Seconds(), err)
	}()

	// Check for intra-batch duplicates
	seen := make(map[int64]struct{}, len(candles))
	for _, c := range candles {
		if err := c.Validate(); err != nil {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[c.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		seen[c.TimestampMs] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, c := range candles {
		exists, err := s.exists(ctx, symbol, timeframe, c.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			symbol, timeframe, timestamp_ms, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			symbol, string(timeframe), uint64(c.TimestampMs),
			c.Open, c.High, c.Low, c.Close, c.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetAll retrieves all candles for a series, ordered by timestamp ASC.
func (s *CandleStore) GetAll(ctx context.Context, symbol string, timeframe domain.Timeframe) ([]domain.Candle, error) {
	query := `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, string(timeframe))
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetRange retrieves candles for a series within [start, end] ms (inclusive).
func (s *CandleStore) GetRange(ctx context.Context, symbol string, timeframe domain.Timeframe, start, end int64) ([]domain.Candle, error) {
	query := `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, string(timeframe), uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query candles by range: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// exists checks if a candle with the given key exists.
func (s *CandleStore) exists(ctx context.Context, symbol string, timeframe domain.Timeframe, timestampMs int64) (bool, error) {
	query := `
		SELECT count(*) FROM candles
		WHERE symbol = ? AND timeframe = ? AND timestamp_ms = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, string(timeframe), uint64(timestampMs)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanCandles scans multiple rows.
func scanCandles(rows chRows) ([]domain.Candle, error) {
	var candles []domain.Candle

	for rows.Next() {
		var c domain.Candle
		var timestampMs uint64

		err := rows.Scan(&timestampMs, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume)
		if err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}

		c.TimestampMs = int64(timestampMs)
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}
