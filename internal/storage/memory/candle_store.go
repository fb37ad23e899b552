package memory

import (
	"context"
	"sort"
	"sync"

	"crypto-backtest-lab/internal/domain"
	"crypto-backtest-lab/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[seriesKey][]domain.Candle // sorted by timestamp ASC
	seen map[seriesKey]map[int64]struct{}
}

type seriesKey struct {
	symbol    string
	timeframe domain.Timeframe
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[seriesKey][]domain.Candle),
		seen: make(map[seriesKey]map[int64]struct{}),
	}
}

// InsertBulk adds multiple candles for a (symbol, timeframe) series.
// Fails entire batch on duplicate (symbol, timeframe, timestamp_ms).
func (s *CandleStore) InsertBulk(_ context.Context, symbol string, timeframe domain.Timeframe, candles []domain.Candle) error {
	if symbol == "" || !timeframe.Valid() {
		return storage.ErrInvalidInput
	}
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := seriesKey{symbol, timeframe}
	existing := s.seen[key]

	// First pass: check for duplicates (existing + intra-batch)
	batchKeys := make(map[int64]struct{}, len(candles))
	for _, c := range candles {
		if err := c.Validate(); err != nil {
			return storage.ErrInvalidInput
		}
		if _, exists := existing[c.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[c.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[c.TimestampMs] = struct{}{}
	}

	// Second pass: insert all and restore timestamp order
	if existing == nil {
		existing = make(map[int64]struct{}, len(candles))
		s.seen[key] = existing
	}
	for _, c := range candles {
		existing[c.TimestampMs] = struct{}{}
	}
	merged := append(s.data[key], candles...)
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].TimestampMs < merged[j].TimestampMs
	})
	s.data[key] = merged

	return nil
}

// GetAll retrieves all candles for a series, ordered by timestamp ASC.
func (s *CandleStore) GetAll(_ context.Context, symbol string, timeframe domain.Timeframe) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.data[seriesKey{symbol, timeframe}]
	result := make([]domain.Candle, len(series))
	copy(result, series)
	return result, nil
}

// GetRange retrieves candles for a series within [start, end] ms (inclusive).
func (s *CandleStore) GetRange(_ context.Context, symbol string, timeframe domain.Timeframe, start, end int64) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Candle
	for _, c := range s.data[seriesKey{symbol, timeframe}] {
		if c.TimestampMs >= start && c.TimestampMs <= end {
			result = append(result, c)
		}
	}
	return result, nil
}

var _ storage.CandleStore = (*CandleStore)(nil)
