// Package risk implements position sizing and trade validation.
// Both the live order path and the backtest simulator call into the same
// manager, so sizing behaves identically in simulation and production.
package risk

import (
	"math"

	"crypto-backtest-lab/internal/domain"
)

// PositionSize is the result of a sizing computation.
type PositionSize struct {
	Quantity   float64 // units to buy
	Notional   float64 // quantity * entry price
	RiskAmount float64 // currency lost if the stop is hit exactly
}

// AccountState is the caller-tracked exposure snapshot validation reads.
type AccountState struct {
	Equity        float64
	OpenPositions int
}

// Manager sizes positions and gates proposed trades against configured
// limits. It holds no mutable state and is safe for concurrent use.
type Manager struct {
	limits domain.RiskLimits
}

// NewManager creates a risk manager with the given limits.
func NewManager(limits domain.RiskLimits) (*Manager, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	return &Manager{limits: limits}, nil
}

// Limits returns the configured limits.
func (m *Manager) Limits() domain.RiskLimits { return m.limits }

// ComputePositionSize sizes a position so that a stop-out loses exactly
// equity*riskFraction before commission and slippage:
//
//	risk_amount   = equity * risk_fraction
//	per_unit_risk = |entry - stop|
//	quantity      = risk_amount / per_unit_risk
//
// Pure function. Invalid inputs fail with SizingInputError; nothing is
// clamped silently.
func (m *Manager) ComputePositionSize(equity, riskFraction, entryPrice, stopPrice float64) (PositionSize, error) {
	if !(equity > 0) || math.IsInf(equity, 0) || math.IsNaN(equity) {
		return PositionSize{}, &SizingInputError{Field: "equity", Value: equity, Reason: "must be positive"}
	}
	if !(riskFraction > 0) || riskFraction > 1 {
		return PositionSize{}, &SizingInputError{Field: "risk_fraction", Value: riskFraction, Reason: "must be in (0, 1]"}
	}
	if !(entryPrice > 0) {
		return PositionSize{}, &SizingInputError{Field: "entry_price", Value: entryPrice, Reason: "must be positive"}
	}
	if !(stopPrice > 0) {
		return PositionSize{}, &SizingInputError{Field: "stop_price", Value: stopPrice, Reason: "must be positive"}
	}

	perUnitRisk := math.Abs(entryPrice - stopPrice)
	if perUnitRisk == 0 {
		return PositionSize{}, &SizingInputError{Field: "per_unit_risk", Value: 0, Reason: "stop price equals entry price"}
	}

	riskAmount := equity * riskFraction
	quantity := riskAmount / perUnitRisk

	return PositionSize{
		Quantity:   quantity,
		Notional:   quantity * entryPrice,
		RiskAmount: riskAmount,
	}, nil
}

// CapPositionSize scales a computed size down to the position-size cap.
// When the notional exceeds equity*MaxPositionFraction the quantity is
// resized to the cap and the risk amount shrinks proportionally; otherwise
// the size is returned unchanged. ComputePositionSize never clamps, so
// callers that prefer resizing over rejection apply this explicitly.
func (m *Manager) CapPositionSize(size PositionSize, equity, entryPrice float64) PositionSize {
	maxNotional := equity * m.limits.MaxPositionFraction
	if size.Notional <= maxNotional || !(entryPrice > 0) {
		return size
	}

	perUnitRisk := size.RiskAmount / size.Quantity
	quantity := maxNotional / entryPrice
	return PositionSize{
		Quantity:   quantity,
		Notional:   maxNotional,
		RiskAmount: quantity * perUnitRisk,
	}
}

// ValidateTrade gates a proposed trade against the position-size cap and
// the open-trade cap. Advisory only: it reads the account state the
// caller tracks and never mutates anything. Breaches fail with a
// LimitError naming the specific limit.
func (m *Manager) ValidateTrade(quantity, notional float64, acct AccountState) error {
	if !(acct.Equity > 0) {
		return &SizingInputError{Field: "equity", Value: acct.Equity, Reason: "must be positive"}
	}
	if !(quantity > 0) {
		return &SizingInputError{Field: "quantity", Value: quantity, Reason: "must be positive"}
	}

	if acct.OpenPositions >= m.limits.MaxOpenTrades {
		return &LimitError{
			Limit:   LimitOpenTrades,
			Allowed: float64(m.limits.MaxOpenTrades),
			Actual:  float64(acct.OpenPositions + 1),
		}
	}

	maxNotional := acct.Equity * m.limits.MaxPositionFraction
	if notional > maxNotional {
		return &LimitError{
			Limit:   LimitPositionSize,
			Allowed: maxNotional,
			Actual:  notional,
		}
	}

	return nil
}

// ValidateRiskReward checks a proposed entry/stop/target triple against
// the configured minimum reward/risk ratio. A zero minimum disables the
// check.
func (m *Manager) ValidateRiskReward(entryPrice, stopPrice, targetPrice float64) error {
	if m.limits.MinRiskReward <= 0 {
		return nil
	}
	rr, err := RiskReward(entryPrice, stopPrice, targetPrice)
	if err != nil {
		return err
	}
	if rr < m.limits.MinRiskReward {
		return &LimitError{Limit: LimitRiskReward, Allowed: m.limits.MinRiskReward, Actual: rr}
	}
	return nil
}

// RiskReward returns reward-per-unit divided by risk-per-unit.
func RiskReward(entryPrice, stopPrice, targetPrice float64) (float64, error) {
	if !(entryPrice > 0) {
		return 0, &SizingInputError{Field: "entry_price", Value: entryPrice, Reason: "must be positive"}
	}
	perUnitRisk := math.Abs(entryPrice - stopPrice)
	if perUnitRisk == 0 {
		return 0, &SizingInputError{Field: "per_unit_risk", Value: 0, Reason: "stop price equals entry price"}
	}
	return math.Abs(targetPrice-entryPrice) / perUnitRisk, nil
}

// StopLossPrice derives a stop level from a percentage distance. For a
// buy the stop sits below entry, for a sell above.
func (m *Manager) StopLossPrice(entryPrice float64, dir domain.Direction, pct float64) float64 {
	if pct <= 0 {
		pct = m.limits.DefaultStopLossPct
	}
	if dir == domain.DirectionSell {
		return entryPrice * (1 + pct)
	}
	return entryPrice * (1 - pct)
}

// TakeProfitPrice derives a target level. When rr > 0 and a stop is
// given the target is placed at rr times the stop distance; otherwise a
// percentage distance is used.
func (m *Manager) TakeProfitPrice(entryPrice float64, dir domain.Direction, pct, rr, stopPrice float64) float64 {
	if rr > 0 && stopPrice > 0 {
		reward := math.Abs(entryPrice-stopPrice) * rr
		if dir == domain.DirectionSell {
			return entryPrice - reward
		}
		return entryPrice + reward
	}
	if pct <= 0 {
		pct = m.limits.DefaultTakeProfit
	}
	if dir == domain.DirectionSell {
		return entryPrice * (1 - pct)
	}
	return entryPrice * (1 + pct)
}
