package memory

import (
	"context"
	"sort"
	"sync"

	"crypto-backtest-lab/internal/domain"
	"crypto-backtest-lab/internal/storage"
)

// ClosedTradeStore is an in-memory implementation of storage.ClosedTradeStore.
type ClosedTradeStore struct {
	mu    sync.RWMutex
	data  map[string]domain.ClosedTrade // keyed by trade_id
	byRun map[string][]string           // run_id -> trade_ids in insert order
}

// NewClosedTradeStore creates a new in-memory closed trade store.
func NewClosedTradeStore() *ClosedTradeStore {
	return &ClosedTradeStore{
		data:  make(map[string]domain.ClosedTrade),
		byRun: make(map[string][]string),
	}
}

// InsertBulk adds all trades of a run atomically. Fails entire batch on any
// duplicate trade_id.
func (s *ClosedTradeStore) InsertBulk(_ context.Context, runID string, trades []domain.ClosedTrade) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check for duplicates (existing + intra-batch)
	batchKeys := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[t.TradeID] = struct{}{}
	}

	// Second pass: insert all
	for _, t := range trades {
		s.data[t.TradeID] = t
		s.byRun[runID] = append(s.byRun[runID], t.TradeID)
	}

	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *ClosedTradeStore) GetByID(_ context.Context, tradeID string) (*domain.ClosedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return &t, nil
}

// GetByRunID retrieves all trades of a run, ordered by exit time ASC.
func (s *ClosedTradeStore) GetByRunID(_ context.Context, runID string) ([]domain.ClosedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byRun[runID]
	result := make([]domain.ClosedTrade, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.data[id])
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ExitTimestampMs < result[j].ExitTimestampMs
	})
	return result, nil
}

var _ storage.ClosedTradeStore = (*ClosedTradeStore)(nil)
