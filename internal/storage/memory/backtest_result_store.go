package memory

import (
	"context"
	"sort"
	"sync"

	"crypto-backtest-lab/internal/domain"
	"crypto-backtest-lab/internal/storage"
)

// BacktestResultStore is an in-memory implementation of storage.BacktestResultStore.
type BacktestResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BacktestResult // keyed by run_id
}

// NewBacktestResultStore creates a new in-memory backtest result store.
func NewBacktestResultStore() *BacktestResultStore {
	return &BacktestResultStore{
		data: make(map[string]*domain.BacktestResult),
	}
}

// Insert adds a new result. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestResultStore) Insert(_ context.Context, r *domain.BacktestResult) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.RunID] = copyResult(r)
	return nil
}

// GetByID retrieves a result by its run ID. Returns ErrNotFound if not exists.
func (s *BacktestResultStore) GetByID(_ context.Context, runID string) (*domain.BacktestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyResult(r), nil
}

// GetByStrategy retrieves all results for a strategy, ordered by created_at ASC.
func (s *BacktestResultStore) GetByStrategy(_ context.Context, strategyID string) ([]*domain.BacktestResult, error) {
	return s.filter(func(r *domain.BacktestResult) bool {
		return r.StrategyID == strategyID
	}), nil
}

// GetBySymbol retrieves all results for a symbol, ordered by created_at ASC.
func (s *BacktestResultStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.BacktestResult, error) {
	return s.filter(func(r *domain.BacktestResult) bool {
		return r.Symbol == symbol
	}), nil
}

// GetAll retrieves all results, ordered by created_at ASC.
func (s *BacktestResultStore) GetAll(_ context.Context) ([]*domain.BacktestResult, error) {
	return s.filter(func(*domain.BacktestResult) bool { return true }), nil
}

func (s *BacktestResultStore) filter(keep func(*domain.BacktestResult) bool) []*domain.BacktestResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BacktestResult
	for _, r := range s.data {
		if keep(r) {
			result = append(result, copyResult(r))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAtMs < result[j].CreatedAtMs
	})
	return result
}

// copyResult deep-copies a result so callers cannot mutate stored state.
func copyResult(r *domain.BacktestResult) *domain.BacktestResult {
	out := *r
	if r.Trades != nil {
		out.Trades = make([]domain.ClosedTrade, len(r.Trades))
		copy(out.Trades, r.Trades)
	}
	if r.EquityCurve != nil {
		out.EquityCurve = make([]domain.EquityPoint, len(r.EquityCurve))
		copy(out.EquityCurve, r.EquityCurve)
	}
	return &out
}

var _ storage.BacktestResultStore = (*BacktestResultStore)(nil)
