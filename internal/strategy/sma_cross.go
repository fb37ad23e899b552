package strategy

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"crypto-backtest-lab/internal/domain"
)

// SMACrossStrategy signals on fast/slow moving-average crossovers:
// buy when the fast SMA crosses above the slow, sell when it crosses
// below.
type SMACrossStrategy struct {
	FastPeriod    int
	SlowPeriod    int
	StopLossPct   float64
	TakeProfitPct float64
}

// NewSMACrossStrategy creates a new SMACrossStrategy.
func NewSMACrossStrategy(fast, slow int, stopPct, takeProfitPct float64) *SMACrossStrategy {
	return &SMACrossStrategy{
		FastPeriod:    fast,
		SlowPeriod:    slow,
		StopLossPct:   stopPct,
		TakeProfitPct: takeProfitPct,
	}
}

// ID returns the strategy identifier including parameters.
func (s *SMACrossStrategy) ID() string {
	return fmt.Sprintf("SMA_CROSS_fast%d_slow%d", s.FastPeriod, s.SlowPeriod)
}

// Evaluate checks for a crossover at the final bar of series.
func (s *SMACrossStrategy) Evaluate(i int, series *domain.PriceSeries) (domain.Signal, error) {
	// A crossover needs slow-period history plus the previous bar.
	if i < s.SlowPeriod {
		return domain.Hold(s.ID()), nil
	}

	closes := series.Closes()
	fast := talib.Sma(closes, s.FastPeriod)
	slow := talib.Sma(closes, s.SlowPeriod)

	curFast, prevFast := fast[i], fast[i-1]
	curSlow, prevSlow := slow[i], slow[i-1]

	cur := series.Last()

	switch {
	case curFast > curSlow && prevFast <= prevSlow:
		stop, target := levels(cur.Close, s.StopLossPct, s.TakeProfitPct)
		return domain.Signal{
			Direction:  domain.DirectionBuy,
			Confidence: 0.7,
			EntryPrice: cur.Close,
			StopLoss:   stop,
			TakeProfit: target,
			Strategy:   s.ID(),
		}, nil
	case curFast < curSlow && prevFast >= prevSlow:
		return domain.Signal{
			Direction:  domain.DirectionSell,
			Confidence: 0.7,
			EntryPrice: cur.Close,
			Strategy:   s.ID(),
		}, nil
	}

	return domain.Hold(s.ID()), nil
}

// Ensure SMACrossStrategy implements SignalSource
var _ SignalSource = (*SMACrossStrategy)(nil)
