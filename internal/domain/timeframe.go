package domain

import "time"

// Timeframe identifies the fixed interval of a candle series.
type Timeframe string

// Supported timeframes.
const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// hoursPerYear assumes the always-on crypto market: 365 days, 24 hours.
const hoursPerYear = 365 * 24

// Valid reports whether tf is one of the supported timeframes.
func (tf Timeframe) Valid() bool {
	switch tf {
	case Timeframe1m, Timeframe5m, Timeframe15m, Timeframe1h, Timeframe4h, Timeframe1d:
		return true
	}
	return false
}

// Duration returns the bar interval.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe1m:
		return time.Minute
	case Timeframe5m:
		return 5 * time.Minute
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	}
	return 0
}

// PeriodsPerYear returns the number of bars in a year under the 365-day
// crypto convention. Used to annualize the Sharpe ratio.
func (tf Timeframe) PeriodsPerYear() float64 {
	d := tf.Duration()
	if d <= 0 {
		return 0
	}
	return float64(hoursPerYear) * float64(time.Hour) / float64(d)
}

// ParseTimeframe converts a string to a Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if !tf.Valid() {
		return "", ErrUnknownTimeframe
	}
	return tf, nil
}
