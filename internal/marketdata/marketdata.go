package marketdata

import (
	"context"

	"crypto-backtest-lab/internal/domain"
)

// KlineStream defines an exchange kline subscription interface.
type KlineStream interface {
	// SubscribeKlines subscribes to kline events for a symbol and timeframe.
	SubscribeKlines(ctx context.Context, symbol string, timeframe domain.Timeframe) (<-chan KlineEvent, error)

	// Close closes the stream connection.
	Close() error
}

// KlineEvent is one kline update pushed by the exchange. An event arrives
// on every trade inside the bar; Closed marks the final update of a bar.
type KlineEvent struct {
	Symbol    string
	Timeframe domain.Timeframe
	Candle    domain.Candle
	Closed    bool
}
