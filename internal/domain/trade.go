package domain

// Side of a position. The simulator only ever opens longs.
type Side string

// Side constants.
const (
	SideLong Side = "long"
)

// Exit reason codes, in tie-break priority order.
const (
	ExitReasonStopLoss   = "stop_loss"
	ExitReasonTakeProfit = "take_profit"
	ExitReasonSignal     = "signal"
	ExitReasonEndOfData  = "end_of_data"
)

// OpenPosition is the simulator's single in-flight position. Owned
// exclusively by one simulation run; at most one exists per run.
type OpenPosition struct {
	EntryTimestampMs int64
	EntryPrice       float64 // effective price after slippage
	Quantity         float64
	StopLoss         float64
	TakeProfit       float64
	Side             Side
	EntryCommission  float64
}

// ClosedTrade is one completed round trip. Immutable once appended to
// the ledger; ledger order equals exit order.
type ClosedTrade struct {
	TradeID          string // deterministic hash
	Symbol           string
	Strategy         string
	EntryTimestampMs int64
	ExitTimestampMs  int64
	EntryPrice       float64 // effective, after slippage
	ExitPrice        float64 // effective, after slippage
	Quantity         float64
	Side             Side
	PnL              float64 // net of commissions, absolute
	PnLPct           float64 // net P&L relative to entry notional
	HoldingMs        int64
	ExitReason       string
	EntryCommission  float64
	ExitCommission   float64
}

// Win reports whether the trade realized a positive net P&L.
func (t ClosedTrade) Win() bool { return t.PnL > 0 }

// EquityPoint is one sample of the equity curve: realized equity plus
// unrealized P&L of any open position marked at the bar close.
type EquityPoint struct {
	TimestampMs int64
	Equity      float64
}
