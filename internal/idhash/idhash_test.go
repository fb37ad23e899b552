package idhash

import (
	"encoding/hex"
	"testing"
)

func TestComputeRunIDDeterministic(t *testing.T) {
	a := ComputeRunID("BTCUSDT", "1h", "SMA_CROSS_fast10_slow30", 1000, 2000)
	b := ComputeRunID("BTCUSDT", "1h", "SMA_CROSS_fast10_slow30", 1000, 2000)
	if a != b {
		t.Errorf("same inputs produced different run IDs: %s vs %s", a, b)
	}
}

func TestComputeRunIDDistinctInputs(t *testing.T) {
	base := ComputeRunID("BTCUSDT", "1h", "SMA_CROSS_fast10_slow30", 1000, 2000)
	variants := []string{
		ComputeRunID("ETHUSDT", "1h", "SMA_CROSS_fast10_slow30", 1000, 2000),
		ComputeRunID("BTCUSDT", "4h", "SMA_CROSS_fast10_slow30", 1000, 2000),
		ComputeRunID("BTCUSDT", "1h", "RSI_REVERSION_p14_os30_ob70", 1000, 2000),
		ComputeRunID("BTCUSDT", "1h", "SMA_CROSS_fast10_slow30", 1001, 2000),
		ComputeRunID("BTCUSDT", "1h", "SMA_CROSS_fast10_slow30", 1000, 2001),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collided with base run ID", i)
		}
	}
}

func TestComputeRunIDFormat(t *testing.T) {
	id := ComputeRunID("BTCUSDT", "1h", "s", 0, 0)
	if len(id) != 64 {
		t.Fatalf("run ID length = %d, want 64", len(id))
	}
	if _, err := hex.DecodeString(id); err != nil {
		t.Errorf("run ID is not hex: %v", err)
	}
}

func TestComputeTradeIDDeterministic(t *testing.T) {
	a := ComputeTradeID("BTCUSDT", "1h", "stub", 1_700_000_000_000)
	b := ComputeTradeID("BTCUSDT", "1h", "stub", 1_700_000_000_000)
	if a != b {
		t.Errorf("same inputs produced different trade IDs: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("trade ID length = %d, want 64", len(a))
	}
}

func TestComputeTradeIDDistinctEntryTimes(t *testing.T) {
	a := ComputeTradeID("BTCUSDT", "1h", "stub", 1000)
	b := ComputeTradeID("BTCUSDT", "1h", "stub", 2000)
	if a == b {
		t.Error("trades at different entry times share an ID")
	}
}
