package strategy

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"crypto-backtest-lab/internal/domain"
)

// MACDCrossStrategy signals on MACD/signal-line crossovers.
type MACDCrossStrategy struct {
	FastPeriod    int
	SlowPeriod    int
	SignalPeriod  int
	StopLossPct   float64
	TakeProfitPct float64
}

// NewMACDCrossStrategy creates a new MACDCrossStrategy.
func NewMACDCrossStrategy(fast, slow, signal int, stopPct, takeProfitPct float64) *MACDCrossStrategy {
	return &MACDCrossStrategy{
		FastPeriod:    fast,
		SlowPeriod:    slow,
		SignalPeriod:  signal,
		StopLossPct:   stopPct,
		TakeProfitPct: takeProfitPct,
	}
}

// ID returns the strategy identifier including parameters.
func (s *MACDCrossStrategy) ID() string {
	return fmt.Sprintf("MACD_CROSS_f%d_s%d_sig%d", s.FastPeriod, s.SlowPeriod, s.SignalPeriod)
}

// Evaluate checks for a MACD crossover at the final bar.
func (s *MACDCrossStrategy) Evaluate(i int, series *domain.PriceSeries) (domain.Signal, error) {
	// MACD needs slow EMA plus signal smoothing to stabilize.
	warmup := s.SlowPeriod + s.SignalPeriod
	if i < warmup {
		return domain.Hold(s.ID()), nil
	}

	closes := series.Closes()
	macd, macdSignal, _ := talib.Macd(closes, s.FastPeriod, s.SlowPeriod, s.SignalPeriod)

	cur := series.Last()

	switch {
	case macd[i] > macdSignal[i] && macd[i-1] <= macdSignal[i-1]:
		stop, target := levels(cur.Close, s.StopLossPct, s.TakeProfitPct)
		return domain.Signal{
			Direction:  domain.DirectionBuy,
			Confidence: 0.65,
			EntryPrice: cur.Close,
			StopLoss:   stop,
			TakeProfit: target,
			Strategy:   s.ID(),
		}, nil
	case macd[i] < macdSignal[i] && macd[i-1] >= macdSignal[i-1]:
		return domain.Signal{
			Direction:  domain.DirectionSell,
			Confidence: 0.65,
			EntryPrice: cur.Close,
			Strategy:   s.ID(),
		}, nil
	}

	return domain.Hold(s.ID()), nil
}

// Ensure MACDCrossStrategy implements SignalSource
var _ SignalSource = (*MACDCrossStrategy)(nil)
