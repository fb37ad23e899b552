package domain

import (
	"errors"
	"fmt"
)

// Candle represents one OHLCV bar. Immutable once produced.
type Candle struct {
	TimestampMs int64   // bar open time, Unix milliseconds
	Open        float64 // opening price
	High        float64 // highest price in bar
	Low         float64 // lowest price in bar
	Close       float64 // closing price
	Volume      float64 // traded volume, base units
}

// Validate checks the candle for malformed values.
// OHLC must be positive finite, volume non-negative, and low/high must
// bracket open and close.
func (c Candle) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"open", c.Open},
		{"high", c.High},
		{"low", c.Low},
		{"close", c.Close},
	} {
		if !(f.value > 0) {
			return fmt.Errorf("candle %s must be positive, got %v", f.name, f.value)
		}
	}
	if c.Volume < 0 {
		return fmt.Errorf("candle volume must not be negative, got %v", c.Volume)
	}
	if c.Low > c.High {
		return fmt.Errorf("candle low %v exceeds high %v", c.Low, c.High)
	}
	return nil
}

// Series construction errors.
var (
	ErrEmptySeries         = errors.New("price series has no candles")
	ErrNonMonotonicSeries  = errors.New("price series timestamps are not strictly increasing")
	ErrSymbolRequired      = errors.New("price series symbol is required")
	ErrUnknownTimeframe    = errors.New("unknown timeframe")
	ErrIndexOutOfRange     = errors.New("candle index out of range")
	ErrSeriesCandleInvalid = errors.New("price series contains malformed candle")
)

// PriceSeries is an ordered, read-only sequence of candles for one
// symbol/timeframe. Timestamps are strictly increasing; gaps are
// tolerated and never filled.
type PriceSeries struct {
	symbol    string
	timeframe Timeframe
	candles   []Candle
}

// NewPriceSeries builds a validated series. The input is assumed already
// deduplicated and chronologically sorted by the data provider; this
// constructor verifies ordering rather than repairing it.
func NewPriceSeries(symbol string, tf Timeframe, candles []Candle) (*PriceSeries, error) {
	if symbol == "" {
		return nil, ErrSymbolRequired
	}
	if !tf.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimeframe, tf)
	}
	if len(candles) == 0 {
		return nil, ErrEmptySeries
	}

	for i, c := range candles {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%w: index %d: %v", ErrSeriesCandleInvalid, i, err)
		}
		if i > 0 && c.TimestampMs <= candles[i-1].TimestampMs {
			return nil, fmt.Errorf("%w: index %d (%d <= %d)",
				ErrNonMonotonicSeries, i, c.TimestampMs, candles[i-1].TimestampMs)
		}
	}

	owned := make([]Candle, len(candles))
	copy(owned, candles)

	return &PriceSeries{symbol: symbol, timeframe: tf, candles: owned}, nil
}

// Symbol returns the trading pair the series belongs to.
func (s *PriceSeries) Symbol() string { return s.symbol }

// Timeframe returns the candle interval of the series.
func (s *PriceSeries) Timeframe() Timeframe { return s.timeframe }

// Len returns the number of candles.
func (s *PriceSeries) Len() int { return len(s.candles) }

// At returns the candle at index i.
func (s *PriceSeries) At(i int) (Candle, error) {
	if i < 0 || i >= len(s.candles) {
		return Candle{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(s.candles))
	}
	return s.candles[i], nil
}

// Upto returns a view containing candles [0, i] only. Strategies receive
// this view so future bars are never observable during evaluation.
func (s *PriceSeries) Upto(i int) (*PriceSeries, error) {
	if i < 0 || i >= len(s.candles) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(s.candles))
	}
	return &PriceSeries{
		symbol:    s.symbol,
		timeframe: s.timeframe,
		candles:   s.candles[:i+1],
	}, nil
}

// Closes returns the close prices in order. The slice is a copy.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.candles))
	for i, c := range s.candles {
		out[i] = c.Close
	}
	return out
}

// Last returns the final candle of the series.
func (s *PriceSeries) Last() Candle {
	return s.candles[len(s.candles)-1]
}
