// Package simulator replays a price series bar-by-bar against a signal
// source, sizing entries through the risk manager and producing a
// chronological ledger of closed trades plus an equity curve.
package simulator

import (
	"context"
	"errors"

	"crypto-backtest-lab/internal/domain"
	"crypto-backtest-lab/internal/idhash"
	"crypto-backtest-lab/internal/risk"
	"crypto-backtest-lab/internal/strategy"
)

// Result holds the output of one simulation run.
type Result struct {
	Trades      []domain.ClosedTrade // exit order == chronological order
	EquityCurve []domain.EquityPoint // one point per bar processed
	FinalEquity float64              // realized equity after the last bar
	Cancelled   bool                 // run stopped by context cancellation
}

// Simulator executes single-symbol, long-only simulations. One instance
// may run many series; each Run owns all of its mutable state, so
// concurrent runs on the same Simulator are independent.
type Simulator struct {
	cfg     domain.SimulatorConfig
	riskMgr *risk.Manager
}

// New creates a simulator from a validated configuration.
func New(cfg domain.SimulatorConfig) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	riskMgr, err := risk.NewManager(cfg.Risk)
	if err != nil {
		return nil, err
	}
	return &Simulator{cfg: cfg, riskMgr: riskMgr}, nil
}

// run-local state machine.
type runState struct {
	realizedEquity float64
	position       *domain.OpenPosition
	trades         []domain.ClosedTrade
	equityCurve    []domain.EquityPoint
	stopLoss       float64
	takeProfit     float64
	strategyID     string
}

// Run simulates the series against the signal source.
//
// Per bar, in strict order: exit checks against high/low (stop wins a
// same-bar tie with the target), then an opposing-signal exit at close,
// then entry evaluation when flat, then one equity point marked at the
// bar close. Decisions are made on bar close and execute at that same
// close, so the strategy never benefits from intra-bar hindsight.
//
// Cancellation is cooperative: the flag is checked between bars and the
// partial result is returned with ctx's error. A position still open at
// cancellation is discarded, not force-closed.
func (s *Simulator) Run(ctx context.Context, series *domain.PriceSeries, source strategy.SignalSource) (*Result, error) {
	st := &runState{
		realizedEquity: s.cfg.InitialCapital,
		strategyID:     source.ID(),
	}

	n := series.Len()
	var prevTs int64

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			// Discard any open position: cancellation is not end of data.
			st.position = nil
			return s.result(st, true), err
		}

		bar, err := series.At(i)
		if err != nil {
			return nil, err
		}
		if err := bar.Validate(); err != nil {
			return nil, &PriceDataError{Index: i, Reason: err.Error()}
		}
		if i > 0 && bar.TimestampMs <= prevTs {
			return nil, &PriceDataError{Index: i, Reason: "timestamp not increasing"}
		}
		prevTs = bar.TimestampMs

		// The first bar seeds the equity curve only; decisions need a
		// preceding bar.
		if i > 0 {
			if st.position != nil {
				if err := s.stepInPosition(st, i, bar, series, source); err != nil {
					return nil, err
				}
			} else {
				if err := s.stepFlat(st, i, bar, series, source); err != nil {
					return nil, err
				}
			}
		}

		st.equityCurve = append(st.equityCurve, domain.EquityPoint{
			TimestampMs: bar.TimestampMs,
			Equity:      s.markedEquity(st, bar.Close),
		})
	}

	// Force-close any position left open at the end of the data.
	if st.position != nil {
		last := series.Last()
		s.closePosition(st, series, last.TimestampMs, last.Close, domain.ExitReasonEndOfData)
	}

	return s.result(st, false), nil
}

// stepInPosition runs the exit checks for one bar. Stop-loss and
// take-profit are tested against the bar's full range; when both are
// touched the stop wins (assume the worse outcome happened first). An
// opposing signal exits at the close and is consulted only when neither
// level fired.
func (s *Simulator) stepInPosition(st *runState, i int, bar domain.Candle, series *domain.PriceSeries, source strategy.SignalSource) error {
	switch {
	case bar.Low <= st.stopLoss:
		s.closePosition(st, series, bar.TimestampMs, st.stopLoss, domain.ExitReasonStopLoss)
		return nil
	case bar.High >= st.takeProfit:
		s.closePosition(st, series, bar.TimestampMs, st.takeProfit, domain.ExitReasonTakeProfit)
		return nil
	}

	sig, err := s.evaluate(source, i, series)
	if err != nil {
		return err
	}
	if sig.Direction == domain.DirectionSell {
		s.closePosition(st, series, bar.TimestampMs, bar.Close, domain.ExitReasonSignal)
	}
	return nil
}

// stepFlat evaluates an entry for one bar. A buy at or above the
// configured confidence opens a position at this bar's close (never the
// signal's stated entry, to avoid lookahead), with slippage applied
// against the trader and commission charged on the notional. A sell
// while flat is a no-op: the engine never opens short exposure.
func (s *Simulator) stepFlat(st *runState, i int, bar domain.Candle, series *domain.PriceSeries, source strategy.SignalSource) error {
	sig, err := s.evaluate(source, i, series)
	if err != nil {
		return err
	}
	if sig.Direction != domain.DirectionBuy || sig.Confidence < s.cfg.MinConfidence {
		return nil
	}

	entryPrice := bar.Close * (1 + s.cfg.SlippageBps/10000)

	size, err := s.riskMgr.ComputePositionSize(st.realizedEquity, s.cfg.Risk.RiskFraction, entryPrice, sig.StopLoss)
	if err != nil {
		return err
	}

	// Resize to the position cap rather than rejecting the entry outright
	size = s.riskMgr.CapPositionSize(size, st.realizedEquity, entryPrice)

	if err := s.riskMgr.ValidateTrade(size.Quantity, size.Notional, risk.AccountState{
		Equity:        st.realizedEquity,
		OpenPositions: 0,
	}); err != nil {
		// A still-breached limit rejects this entry; it does not abort the run.
		if errors.Is(err, risk.ErrRiskLimitExceeded) {
			return nil
		}
		return err
	}

	st.position = &domain.OpenPosition{
		EntryTimestampMs: bar.TimestampMs,
		EntryPrice:       entryPrice,
		Quantity:         size.Quantity,
		StopLoss:         sig.StopLoss,
		TakeProfit:       sig.TakeProfit,
		Side:             domain.SideLong,
		EntryCommission:  size.Notional * s.cfg.CommissionRate,
	}
	st.stopLoss = sig.StopLoss
	st.takeProfit = sig.TakeProfit
	return nil
}

// evaluate queries the signal source with a view truncated at bar i, so
// the strategy can never read past the current index.
func (s *Simulator) evaluate(source strategy.SignalSource, i int, series *domain.PriceSeries) (domain.Signal, error) {
	view, err := series.Upto(i)
	if err != nil {
		return domain.Signal{}, err
	}
	sig, err := source.Evaluate(i, view)
	if err != nil {
		return domain.Signal{}, err
	}
	if err := sig.Validate(); err != nil {
		return domain.Signal{}, err
	}
	return sig, nil
}

// closePosition realizes the trade at the given raw exit price.
// Slippage works against the trader on the way out as well, and
// commission is charged on the exit notional symmetrically with entry.
// Realized equity moves only here; sizing never sees unrealized gains.
func (s *Simulator) closePosition(st *runState, series *domain.PriceSeries, exitTs int64, rawExitPrice float64, reason string) {
	pos := st.position
	exitPrice := rawExitPrice * (1 - s.cfg.SlippageBps/10000)
	exitNotional := exitPrice * pos.Quantity
	exitCommission := exitNotional * s.cfg.CommissionRate

	entryNotional := pos.EntryPrice * pos.Quantity
	pnl := (exitNotional - entryNotional) - pos.EntryCommission - exitCommission

	pnlPct := 0.0
	if entryNotional > 0 {
		pnlPct = pnl / entryNotional
	}

	st.realizedEquity += pnl
	st.trades = append(st.trades, domain.ClosedTrade{
		TradeID:          idhash.ComputeTradeID(series.Symbol(), string(series.Timeframe()), st.strategyID, pos.EntryTimestampMs),
		Symbol:           series.Symbol(),
		Strategy:         st.strategyID,
		EntryTimestampMs: pos.EntryTimestampMs,
		ExitTimestampMs:  exitTs,
		EntryPrice:       pos.EntryPrice,
		ExitPrice:        exitPrice,
		Quantity:         pos.Quantity,
		Side:             pos.Side,
		PnL:              pnl,
		PnLPct:           pnlPct,
		HoldingMs:        exitTs - pos.EntryTimestampMs,
		ExitReason:       reason,
		EntryCommission:  pos.EntryCommission,
		ExitCommission:   exitCommission,
	})
	st.position = nil
}

// markedEquity is realized equity plus the open position's unrealized
// P&L at the given close, net of the entry commission already paid.
// Display only: the next sizing decision still uses realized equity.
func (s *Simulator) markedEquity(st *runState, closePrice float64) float64 {
	if st.position == nil {
		return st.realizedEquity
	}
	unrealized := (closePrice-st.position.EntryPrice)*st.position.Quantity - st.position.EntryCommission
	return st.realizedEquity + unrealized
}

func (s *Simulator) result(st *runState, cancelled bool) *Result {
	return &Result{
		Trades:      st.trades,
		EquityCurve: st.equityCurve,
		FinalEquity: st.realizedEquity,
		Cancelled:   cancelled,
	}
}
