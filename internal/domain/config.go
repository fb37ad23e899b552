package domain

import (
	"errors"
	"fmt"
)

// RiskLimits configures the risk manager. Passed explicitly at
// construction; the sizing and validation logic never reads ambient
// state, so a run's behavior is fully determined by its inputs.
type RiskLimits struct {
	RiskFraction        float64 // equity fraction risked per trade
	MaxPositionFraction float64 // max notional as fraction of equity
	MaxOpenTrades       int     // max concurrently open positions
	MinRiskReward       float64 // minimum reward/risk ratio, 0 disables the check
	DefaultStopLossPct  float64 // used by StopLossPrice when the caller has no level
	DefaultTakeProfit   float64 // used by TakeProfitPrice when the caller has no level
}

// DefaultRiskLimits returns the limits used when a run supplies none.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		RiskFraction:        0.02,
		MaxPositionFraction: 0.10,
		MaxOpenTrades:       1,
		MinRiskReward:       0,
		DefaultStopLossPct:  0.02,
		DefaultTakeProfit:   0.04,
	}
}

// Config validation errors.
var (
	ErrConfigRiskFraction   = errors.New("risk fraction must be in (0, 1]")
	ErrConfigPositionLimit  = errors.New("max position fraction must be in (0, 1]")
	ErrConfigOpenTrades     = errors.New("max open trades must be at least 1")
	ErrConfigCommission     = errors.New("commission rate must be in [0, 1)")
	ErrConfigSlippage       = errors.New("slippage must not be negative")
	ErrConfigConfidence     = errors.New("min signal confidence must be in [0, 1]")
	ErrConfigInitialCapital = errors.New("initial capital must be positive")
)

// Validate checks the limits for coherence.
func (l RiskLimits) Validate() error {
	if l.RiskFraction <= 0 || l.RiskFraction > 1 {
		return fmt.Errorf("%w: got %v", ErrConfigRiskFraction, l.RiskFraction)
	}
	if l.MaxPositionFraction <= 0 || l.MaxPositionFraction > 1 {
		return fmt.Errorf("%w: got %v", ErrConfigPositionLimit, l.MaxPositionFraction)
	}
	if l.MaxOpenTrades < 1 {
		return fmt.Errorf("%w: got %d", ErrConfigOpenTrades, l.MaxOpenTrades)
	}
	return nil
}

// SimulatorConfig configures one backtest run.
type SimulatorConfig struct {
	InitialCapital float64
	CommissionRate float64 // fraction of notional charged on entry and exit
	SlippageBps    float64 // basis points applied against the trader
	MinConfidence  float64 // buy signals below this confidence are ignored
	Risk           RiskLimits
}

// DefaultSimulatorConfig returns the configuration used when a run
// supplies none. Commission and slippage defaults follow typical spot
// exchange taker costs.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		InitialCapital: 10000,
		CommissionRate: 0.001,
		SlippageBps:    5,
		MinConfidence:  0.5,
		Risk:           DefaultRiskLimits(),
	}
}

// Validate checks the full simulation configuration.
func (c SimulatorConfig) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("%w: got %v", ErrConfigInitialCapital, c.InitialCapital)
	}
	if c.CommissionRate < 0 || c.CommissionRate >= 1 {
		return fmt.Errorf("%w: got %v", ErrConfigCommission, c.CommissionRate)
	}
	if c.SlippageBps < 0 {
		return fmt.Errorf("%w: got %v", ErrConfigSlippage, c.SlippageBps)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("%w: got %v", ErrConfigConfidence, c.MinConfidence)
	}
	return c.Risk.Validate()
}
