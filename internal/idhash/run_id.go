package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeRunID computes a deterministic backtest run_id using SHA256.
// Formula: SHA256(symbol|timeframe|strategy_id|start_ms|end_ms)
// Two runs over the same data with the same strategy share an ID, which
// is what makes result storage append-only deduplication work.
func ComputeRunID(symbol, timeframe, strategyID string, startMs, endMs int64) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%d", symbol, timeframe, strategyID, startMs, endMs)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
