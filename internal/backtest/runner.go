package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crypto-backtest-lab/internal/domain"
	"crypto-backtest-lab/internal/idhash"
	"crypto-backtest-lab/internal/observability"
	"crypto-backtest-lab/internal/performance"
	"crypto-backtest-lab/internal/simulator"
	"crypto-backtest-lab/internal/storage"
	"crypto-backtest-lab/internal/strategy"
)

// Runner errors
var (
	ErrNoCandles = errors.New("no candles in requested range")
)

// Runner executes one full backtest: load candles, simulate, summarize,
// persist.
type Runner struct {
	candleStore storage.CandleStore
	resultStore storage.BacktestResultStore
	tradeStore  storage.ClosedTradeStore
	simCfg      domain.SimulatorConfig
}

// RunnerOptions contains configuration for creating a Runner.
// Result and trade stores are optional; a nil store skips persistence.
type RunnerOptions struct {
	CandleStore storage.CandleStore
	ResultStore storage.BacktestResultStore
	TradeStore  storage.ClosedTradeStore
	Simulator   domain.SimulatorConfig
}

// NewRunner creates a backtest runner.
func NewRunner(opts RunnerOptions) *Runner {
	return &Runner{
		candleStore: opts.CandleStore,
		resultStore: opts.ResultStore,
		tradeStore:  opts.TradeStore,
		simCfg:      opts.Simulator,
	}
}

// RunRequest identifies one backtest run.
type RunRequest struct {
	Symbol    string
	Timeframe domain.Timeframe
	Strategy  domain.StrategyConfig

	// StartMs/EndMs bound the candle range (inclusive). Both zero means
	// the full stored series.
	StartMs int64
	EndMs   int64
}

// Run executes a backtest for a symbol, timeframe and strategy config.
// Steps:
//  1. Build signal source via strategy.FromConfig
//  2. Load candles and build the validated price series
//  3. Simulate bar by bar
//  4. Summarize the trade ledger and equity curve
//  5. Persist result and trades under a deterministic run ID
func (r *Runner) Run(ctx context.Context, req RunRequest) (*domain.BacktestResult, error) {
	started := time.Now()

	source, err := strategy.FromConfig(req.Strategy)
	if err != nil {
		return nil, err
	}

	candles, err := r.loadCandles(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNoCandles, req.Symbol, req.Timeframe)
	}

	series, err := domain.NewPriceSeries(req.Symbol, req.Timeframe, candles)
	if err != nil {
		return nil, fmt.Errorf("build price series: %w", err)
	}

	sim, err := simulator.New(r.simCfg)
	if err != nil {
		return nil, err
	}

	simResult, err := sim.Run(ctx, series, source)
	if err != nil {
		observability.RecordBacktestRun(req.Strategy.StrategyType, "error",
			time.Since(started).Seconds(), 0, 0)
		return nil, err
	}

	summary := performance.Summarize(simResult.Trades, simResult.EquityCurve, req.Timeframe)

	startMs := candles[0].TimestampMs
	endMs := candles[len(candles)-1].TimestampMs
	result := &domain.BacktestResult{
		RunID:          idhash.ComputeRunID(req.Symbol, string(req.Timeframe), source.ID(), startMs, endMs),
		StrategyID:     source.ID(),
		Symbol:         req.Symbol,
		Timeframe:      req.Timeframe,
		StartMs:        startMs,
		EndMs:          endMs,
		InitialCapital: r.simCfg.InitialCapital,
		FinalEquity:    simResult.FinalEquity,
		Summary:        summary,
		Trades:         simResult.Trades,
		EquityCurve:    simResult.EquityCurve,
		CreatedAtMs:    time.Now().UnixMilli(),
	}

	if err := r.persist(ctx, result); err != nil {
		return nil, err
	}

	observability.RecordBacktestRun(req.Strategy.StrategyType, "ok",
		time.Since(started).Seconds(), len(result.Trades), len(result.EquityCurve))
	observability.DefaultMetrics.LastSuccessfulBacktest.Set(float64(time.Now().Unix()))

	return result, nil
}

func (r *Runner) loadCandles(ctx context.Context, req RunRequest) ([]domain.Candle, error) {
	if req.StartMs == 0 && req.EndMs == 0 {
		return r.candleStore.GetAll(ctx, req.Symbol, req.Timeframe)
	}
	return r.candleStore.GetRange(ctx, req.Symbol, req.Timeframe, req.StartMs, req.EndMs)
}

// persist writes the result row first, then the trade ledger.
// Propagates storage.ErrDuplicateKey when the run already exists.
func (r *Runner) persist(ctx context.Context, result *domain.BacktestResult) error {
	if r.resultStore != nil {
		if err := r.resultStore.Insert(ctx, result); err != nil {
			return err
		}
	}
	if r.tradeStore != nil {
		if err := r.tradeStore.InsertBulk(ctx, result.RunID, result.Trades); err != nil {
			return err
		}
	}
	return nil
}
