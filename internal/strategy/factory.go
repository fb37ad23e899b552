package strategy

import (
	"errors"

	"crypto-backtest-lab/internal/domain"
)

// Factory errors
var (
	ErrUnknownStrategyType = errors.New("unknown strategy type")
	ErrMissingFastPeriod   = errors.New("SMA_CROSS/MACD_CROSS requires FastPeriod")
	ErrMissingSlowPeriod   = errors.New("SMA_CROSS/MACD_CROSS requires SlowPeriod")
	ErrMissingRSIPeriod    = errors.New("RSI_REVERSION requires RSIPeriod")
	ErrMissingSignalPeriod = errors.New("MACD_CROSS requires SignalPeriod")
	ErrBadPeriodOrder      = errors.New("FastPeriod must be smaller than SlowPeriod")
)

// Level defaults applied when a config carries no stop/target distances.
const (
	defaultStopLossPct   = 0.02
	defaultTakeProfitPct = 0.04
)

// FromConfig creates a SignalSource from domain.StrategyConfig.
// Validates required parameters per strategy type; new strategies are new
// implementations of SignalSource registered here, never ad hoc dispatch.
func FromConfig(cfg domain.StrategyConfig) (SignalSource, error) {
	switch cfg.StrategyType {
	case domain.StrategyTypeSMACross:
		return fromSMACrossConfig(cfg)
	case domain.StrategyTypeRSIReversion:
		return fromRSIReversionConfig(cfg)
	case domain.StrategyTypeMACDCross:
		return fromMACDCrossConfig(cfg)
	default:
		return nil, ErrUnknownStrategyType
	}
}

func fromSMACrossConfig(cfg domain.StrategyConfig) (*SMACrossStrategy, error) {
	if cfg.FastPeriod == nil {
		return nil, ErrMissingFastPeriod
	}
	if cfg.SlowPeriod == nil {
		return nil, ErrMissingSlowPeriod
	}
	if *cfg.FastPeriod >= *cfg.SlowPeriod {
		return nil, ErrBadPeriodOrder
	}

	stop, target := levelParams(cfg)
	return NewSMACrossStrategy(*cfg.FastPeriod, *cfg.SlowPeriod, stop, target), nil
}

func fromRSIReversionConfig(cfg domain.StrategyConfig) (*RSIReversionStrategy, error) {
	if cfg.RSIPeriod == nil {
		return nil, ErrMissingRSIPeriod
	}

	oversold, overbought := 30.0, 70.0
	if cfg.Oversold != nil {
		oversold = *cfg.Oversold
	}
	if cfg.Overbought != nil {
		overbought = *cfg.Overbought
	}

	stop, target := levelParams(cfg)
	return NewRSIReversionStrategy(*cfg.RSIPeriod, oversold, overbought, stop, target), nil
}

func fromMACDCrossConfig(cfg domain.StrategyConfig) (*MACDCrossStrategy, error) {
	if cfg.FastPeriod == nil {
		return nil, ErrMissingFastPeriod
	}
	if cfg.SlowPeriod == nil {
		return nil, ErrMissingSlowPeriod
	}
	if cfg.SignalPeriod == nil {
		return nil, ErrMissingSignalPeriod
	}
	if *cfg.FastPeriod >= *cfg.SlowPeriod {
		return nil, ErrBadPeriodOrder
	}

	stop, target := levelParams(cfg)
	return NewMACDCrossStrategy(*cfg.FastPeriod, *cfg.SlowPeriod, *cfg.SignalPeriod, stop, target), nil
}

func levelParams(cfg domain.StrategyConfig) (stopPct, takeProfitPct float64) {
	stopPct, takeProfitPct = defaultStopLossPct, defaultTakeProfitPct
	if cfg.StopLossPct != nil && *cfg.StopLossPct > 0 {
		stopPct = *cfg.StopLossPct
	}
	if cfg.TakeProfitPct != nil && *cfg.TakeProfitPct > 0 {
		takeProfitPct = *cfg.TakeProfitPct
	}
	return stopPct, takeProfitPct
}
