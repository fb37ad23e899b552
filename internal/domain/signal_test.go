package domain

import (
	"errors"
	"testing"
)

func TestSignalValidate(t *testing.T) {
	tests := []struct {
		name    string
		sig     Signal
		wantErr error
	}{
		{
			name: "valid buy",
			sig: Signal{
				Direction:  DirectionBuy,
				Confidence: 0.7,
				EntryPrice: 100,
				StopLoss:   98,
				TakeProfit: 104,
			},
		},
		{
			name: "hold carries no levels",
			sig:  Hold("SMA_CROSS_fast10_slow30"),
		},
		{
			name: "sell needs no levels",
			sig:  Signal{Direction: DirectionSell, Confidence: 0.6},
		},
		{
			name:    "confidence above one",
			sig:     Signal{Direction: DirectionHold, Confidence: 1.5},
			wantErr: ErrSignalConfidence,
		},
		{
			name:    "negative confidence",
			sig:     Signal{Direction: DirectionHold, Confidence: -0.1},
			wantErr: ErrSignalConfidence,
		},
		{
			name: "buy stop above entry",
			sig: Signal{
				Direction:  DirectionBuy,
				Confidence: 0.7,
				EntryPrice: 100,
				StopLoss:   101,
				TakeProfit: 104,
			},
			wantErr: ErrSignalLevels,
		},
		{
			name: "buy target below entry",
			sig: Signal{
				Direction:  DirectionBuy,
				Confidence: 0.7,
				EntryPrice: 100,
				StopLoss:   98,
				TakeProfit: 99,
			},
			wantErr: ErrSignalLevels,
		},
		{
			name: "buy missing levels",
			sig: Signal{
				Direction:  DirectionBuy,
				Confidence: 0.7,
				EntryPrice: 100,
			},
			wantErr: ErrSignalLevels,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sig.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHoldAttributesStrategy(t *testing.T) {
	sig := Hold("RSI_REVERSION_p14_os30_ob70")
	if sig.Direction != DirectionHold {
		t.Errorf("direction = %s, want hold", sig.Direction)
	}
	if sig.Strategy != "RSI_REVERSION_p14_os30_ob70" {
		t.Errorf("strategy = %q", sig.Strategy)
	}
}
