package risk

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below unwrap to these so callers can
// branch with errors.Is and still read the specifics with errors.As.
var (
	ErrInvalidSizingInput = errors.New("invalid sizing input")
	ErrRiskLimitExceeded  = errors.New("risk limit exceeded")
)

// SizingInputError reports which sizing input was invalid. Sizing never
// clamps bad input; it fails with the offending field.
type SizingInputError struct {
	Field  string  // "equity" | "risk_fraction" | "entry_price" | "stop_price" | "per_unit_risk"
	Value  float64 // the rejected value
	Reason string
}

func (e *SizingInputError) Error() string {
	return fmt.Sprintf("invalid sizing input: %s=%v (%s)", e.Field, e.Value, e.Reason)
}

func (e *SizingInputError) Unwrap() error { return ErrInvalidSizingInput }

// Limit identifies which configured cap a trade breached.
type Limit string

// Limit constants.
const (
	LimitPositionSize Limit = "position_size"
	LimitOpenTrades   Limit = "max_open_trades"
	LimitRiskReward   Limit = "min_risk_reward"
)

// LimitError reports a breached risk limit. The caller decides whether
// to reject or resize; validation itself never mutates account state.
type LimitError struct {
	Limit   Limit
	Allowed float64
	Actual  float64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("risk limit exceeded: %s (allowed %v, got %v)", e.Limit, e.Allowed, e.Actual)
}

func (e *LimitError) Unwrap() error { return ErrRiskLimitExceeded }
