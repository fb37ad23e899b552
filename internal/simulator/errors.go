package simulator

import (
	"errors"
	"fmt"
)

// ErrMalformedPriceData is returned when historical data contains a
// non-positive price or a non-monotonic timestamp. Fatal to the run:
// propagating bad data into P&L math is worse than stopping.
var ErrMalformedPriceData = errors.New("malformed price data")

// PriceDataError reports which bar of the input series was malformed.
type PriceDataError struct {
	Index  int
	Reason string
}

func (e *PriceDataError) Error() string {
	return fmt.Sprintf("malformed price data at bar %d: %s", e.Index, e.Reason)
}

func (e *PriceDataError) Unwrap() error { return ErrMalformedPriceData }
