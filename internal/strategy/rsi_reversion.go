package strategy

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"crypto-backtest-lab/internal/domain"
)

// RSIReversionStrategy trades mean reversion on RSI extremes: buy when
// RSI crosses down into oversold, sell when it crosses up into
// overbought.
type RSIReversionStrategy struct {
	Period        int
	Oversold      float64
	Overbought    float64
	StopLossPct   float64
	TakeProfitPct float64
}

// NewRSIReversionStrategy creates a new RSIReversionStrategy.
func NewRSIReversionStrategy(period int, oversold, overbought, stopPct, takeProfitPct float64) *RSIReversionStrategy {
	return &RSIReversionStrategy{
		Period:        period,
		Oversold:      oversold,
		Overbought:    overbought,
		StopLossPct:   stopPct,
		TakeProfitPct: takeProfitPct,
	}
}

// ID returns the strategy identifier including parameters.
func (s *RSIReversionStrategy) ID() string {
	return fmt.Sprintf("RSI_REVERSION_p%d_os%.0f_ob%.0f", s.Period, s.Oversold, s.Overbought)
}

// Evaluate checks for an RSI threshold crossing at the final bar.
func (s *RSIReversionStrategy) Evaluate(i int, series *domain.PriceSeries) (domain.Signal, error) {
	if i < s.Period+1 {
		return domain.Hold(s.ID()), nil
	}

	closes := series.Closes()
	rsi := talib.Rsi(closes, s.Period)

	cur, prev := rsi[i], rsi[i-1]
	bar := series.Last()

	switch {
	case cur < s.Oversold && prev >= s.Oversold:
		stop, target := levels(bar.Close, s.StopLossPct, s.TakeProfitPct)
		return domain.Signal{
			Direction:  domain.DirectionBuy,
			Confidence: confidenceFromDepth(s.Oversold - cur),
			EntryPrice: bar.Close,
			StopLoss:   stop,
			TakeProfit: target,
			Strategy:   s.ID(),
		}, nil
	case cur > s.Overbought && prev <= s.Overbought:
		return domain.Signal{
			Direction:  domain.DirectionSell,
			Confidence: confidenceFromDepth(cur - s.Overbought),
			EntryPrice: bar.Close,
			Strategy:   s.ID(),
		}, nil
	}

	return domain.Hold(s.ID()), nil
}

// confidenceFromDepth scales confidence with how far past the threshold
// the oscillator moved. Capped well below 1 so configuration thresholds
// stay meaningful.
func confidenceFromDepth(depth float64) float64 {
	c := 0.6 + depth/100
	if c > 0.9 {
		c = 0.9
	}
	return c
}

// Ensure RSIReversionStrategy implements SignalSource
var _ SignalSource = (*RSIReversionStrategy)(nil)
