package domain

import (
	"errors"
	"fmt"
)

// Direction is the action a signal recommends.
type Direction string

// Direction constants.
const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
	DirectionHold Direction = "hold"
)

// Signal is a decision emitted by a signal source for one candle index.
// The engine is long-only: a buy may open a position, a sell only closes
// an existing one, hold does nothing.
type Signal struct {
	Direction  Direction
	Confidence float64 // 0.0 - 1.0
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	Strategy   string // originating strategy identifier
}

// Signal validation errors.
var (
	ErrSignalConfidence = errors.New("signal confidence must be within [0, 1]")
	ErrSignalLevels     = errors.New("buy signal requires stop_loss < entry < take_profit")
)

// Hold returns a hold signal attributed to the given strategy.
func Hold(strategy string) Signal {
	return Signal{Direction: DirectionHold, Strategy: strategy}
}

// Validate checks signal invariants. Hold signals carry no levels and
// always pass; buy signals must have coherent stop/entry/target ordering.
func (s Signal) Validate() error {
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("%w: got %v", ErrSignalConfidence, s.Confidence)
	}
	if s.Direction != DirectionBuy {
		return nil
	}
	if !(s.StopLoss < s.EntryPrice && s.EntryPrice < s.TakeProfit) {
		return fmt.Errorf("%w: stop=%v entry=%v target=%v",
			ErrSignalLevels, s.StopLoss, s.EntryPrice, s.TakeProfit)
	}
	return nil
}
