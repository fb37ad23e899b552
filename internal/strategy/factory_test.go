package strategy

import (
	"errors"
	"testing"

	"crypto-backtest-lab/internal/domain"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func TestFromConfigSMACross(t *testing.T) {
	src, err := FromConfig(domain.StrategyConfig{
		StrategyType: domain.StrategyTypeSMACross,
		FastPeriod:   intp(10),
		SlowPeriod:   intp(30),
	})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	sma, ok := src.(*SMACrossStrategy)
	if !ok {
		t.Fatalf("source = %T, want *SMACrossStrategy", src)
	}
	if sma.FastPeriod != 10 || sma.SlowPeriod != 30 {
		t.Errorf("periods = %d/%d, want 10/30", sma.FastPeriod, sma.SlowPeriod)
	}
	// Level defaults apply when the config carries none.
	if sma.StopLossPct != 0.02 || sma.TakeProfitPct != 0.04 {
		t.Errorf("levels = %v/%v, want defaults 0.02/0.04", sma.StopLossPct, sma.TakeProfitPct)
	}
	if src.ID() != "SMA_CROSS_fast10_slow30" {
		t.Errorf("id = %s", src.ID())
	}
}

func TestFromConfigLevelOverrides(t *testing.T) {
	src, err := FromConfig(domain.StrategyConfig{
		StrategyType:  domain.StrategyTypeSMACross,
		FastPeriod:    intp(5),
		SlowPeriod:    intp(20),
		StopLossPct:   floatp(0.03),
		TakeProfitPct: floatp(0.09),
	})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	sma := src.(*SMACrossStrategy)
	if sma.StopLossPct != 0.03 || sma.TakeProfitPct != 0.09 {
		t.Errorf("levels = %v/%v, want 0.03/0.09", sma.StopLossPct, sma.TakeProfitPct)
	}
}

func TestFromConfigRSIReversion(t *testing.T) {
	src, err := FromConfig(domain.StrategyConfig{
		StrategyType: domain.StrategyTypeRSIReversion,
		RSIPeriod:    intp(14),
	})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	rsi, ok := src.(*RSIReversionStrategy)
	if !ok {
		t.Fatalf("source = %T, want *RSIReversionStrategy", src)
	}
	// Threshold defaults.
	if rsi.Oversold != 30 || rsi.Overbought != 70 {
		t.Errorf("thresholds = %v/%v, want 30/70", rsi.Oversold, rsi.Overbought)
	}
	if src.ID() != "RSI_REVERSION_p14_os30_ob70" {
		t.Errorf("id = %s", src.ID())
	}

	src, err = FromConfig(domain.StrategyConfig{
		StrategyType: domain.StrategyTypeRSIReversion,
		RSIPeriod:    intp(7),
		Oversold:     floatp(25),
		Overbought:   floatp(75),
	})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	rsi = src.(*RSIReversionStrategy)
	if rsi.Oversold != 25 || rsi.Overbought != 75 {
		t.Errorf("thresholds = %v/%v, want 25/75", rsi.Oversold, rsi.Overbought)
	}
}

func TestFromConfigMACDCross(t *testing.T) {
	src, err := FromConfig(domain.StrategyConfig{
		StrategyType: domain.StrategyTypeMACDCross,
		FastPeriod:   intp(12),
		SlowPeriod:   intp(26),
		SignalPeriod: intp(9),
	})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if src.ID() != "MACD_CROSS_f12_s26_sig9" {
		t.Errorf("id = %s", src.ID())
	}
}

func TestFromConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		cfg  domain.StrategyConfig
		want error
	}{
		{"unknown type", domain.StrategyConfig{StrategyType: "MOMENTUM"}, ErrUnknownStrategyType},
		{"sma missing fast", domain.StrategyConfig{StrategyType: domain.StrategyTypeSMACross, SlowPeriod: intp(30)}, ErrMissingFastPeriod},
		{"sma missing slow", domain.StrategyConfig{StrategyType: domain.StrategyTypeSMACross, FastPeriod: intp(10)}, ErrMissingSlowPeriod},
		{"sma bad order", domain.StrategyConfig{StrategyType: domain.StrategyTypeSMACross, FastPeriod: intp(30), SlowPeriod: intp(10)}, ErrBadPeriodOrder},
		{"rsi missing period", domain.StrategyConfig{StrategyType: domain.StrategyTypeRSIReversion}, ErrMissingRSIPeriod},
		{"macd missing signal", domain.StrategyConfig{StrategyType: domain.StrategyTypeMACDCross, FastPeriod: intp(12), SlowPeriod: intp(26)}, ErrMissingSignalPeriod},
		{"macd bad order", domain.StrategyConfig{StrategyType: domain.StrategyTypeMACDCross, FastPeriod: intp(26), SlowPeriod: intp(12), SignalPeriod: intp(9)}, ErrBadPeriodOrder},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromConfig(tc.cfg)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}
