package domain

import (
	"errors"
	"testing"
)

func TestRiskLimitsValidate(t *testing.T) {
	if err := DefaultRiskLimits().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*RiskLimits)
		wantErr error
	}{
		{"zero risk fraction", func(l *RiskLimits) { l.RiskFraction = 0 }, ErrConfigRiskFraction},
		{"risk fraction above one", func(l *RiskLimits) { l.RiskFraction = 1.5 }, ErrConfigRiskFraction},
		{"zero position fraction", func(l *RiskLimits) { l.MaxPositionFraction = 0 }, ErrConfigPositionLimit},
		{"zero open trades", func(l *RiskLimits) { l.MaxOpenTrades = 0 }, ErrConfigOpenTrades},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := DefaultRiskLimits()
			tt.mutate(&l)
			if err := l.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSimulatorConfigValidate(t *testing.T) {
	if err := DefaultSimulatorConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*SimulatorConfig)
		wantErr error
	}{
		{"zero capital", func(c *SimulatorConfig) { c.InitialCapital = 0 }, ErrConfigInitialCapital},
		{"negative commission", func(c *SimulatorConfig) { c.CommissionRate = -0.001 }, ErrConfigCommission},
		{"commission at one", func(c *SimulatorConfig) { c.CommissionRate = 1 }, ErrConfigCommission},
		{"negative slippage", func(c *SimulatorConfig) { c.SlippageBps = -1 }, ErrConfigSlippage},
		{"confidence above one", func(c *SimulatorConfig) { c.MinConfidence = 1.1 }, ErrConfigConfidence},
		{"bad nested limits", func(c *SimulatorConfig) { c.Risk.RiskFraction = 0 }, ErrConfigRiskFraction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultSimulatorConfig()
			tt.mutate(&c)
			if err := c.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
