package strategy

import (
	"crypto-backtest-lab/internal/domain"
)

// StubSource replays scripted signals by candle index. Used by tests to
// drive the simulator deterministically without indicator math.
type StubSource struct {
	Name    string
	Signals map[int]domain.Signal

	// SeenLens records series.Len() per Evaluate call, letting tests
	// assert the simulator never exposed bars past the current index.
	SeenLens []int
}

// NewStubSource creates a stub signal source.
func NewStubSource(name string, signals map[int]domain.Signal) *StubSource {
	return &StubSource{Name: name, Signals: signals}
}

// Evaluate returns the scripted signal for i, or hold.
func (s *StubSource) Evaluate(i int, series *domain.PriceSeries) (domain.Signal, error) {
	s.SeenLens = append(s.SeenLens, series.Len())
	if sig, ok := s.Signals[i]; ok {
		if sig.Strategy == "" {
			sig.Strategy = s.ID()
		}
		return sig, nil
	}
	return domain.Hold(s.ID()), nil
}

// ID returns the stub identifier.
func (s *StubSource) ID() string {
	if s.Name == "" {
		return "stub"
	}
	return s.Name
}

// Ensure StubSource implements SignalSource
var _ SignalSource = (*StubSource)(nil)
