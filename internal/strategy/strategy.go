package strategy

import (
	"crypto-backtest-lab/internal/domain"
)

// SignalSource produces a directional decision for one candle index.
// The simulator hands it a series view truncated at the current index,
// so implementations can never observe future bars.
type SignalSource interface {
	// Evaluate returns the decision for candle i of series. The series
	// contains exactly candles [0, i]; i is always series.Len()-1.
	// Implementations must be deterministic for identical inputs.
	Evaluate(i int, series *domain.PriceSeries) (domain.Signal, error)

	// ID returns the strategy identifier including parameters.
	ID() string
}

// levels derives stop/target prices for a buy at the given close price.
// Shared by the concrete strategies so every emitted buy satisfies
// stop < entry < target.
func levels(closePrice, stopPct, takeProfitPct float64) (stop, target float64) {
	return closePrice * (1 - stopPct), closePrice * (1 + takeProfitPct)
}
