// Package orchestrator coordinates batch backtest execution:
// every configured strategy against every configured symbol.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"crypto-backtest-lab/internal/backtest"
	"crypto-backtest-lab/internal/domain"
	"crypto-backtest-lab/internal/storage"
)

// defaultWorkers bounds concurrent runs when Options.Workers is unset.
const defaultWorkers = 4

// Orchestrator runs the symbol x strategy backtest matrix.
type Orchestrator struct {
	runner *backtest.Runner

	symbols         []string
	timeframe       domain.Timeframe
	strategyConfigs []domain.StrategyConfig

	startMs int64
	endMs   int64
	workers int
	verbose bool
}

// Options for creating Orchestrator.
type Options struct {
	// Required stores
	CandleStore storage.CandleStore
	ResultStore storage.BacktestResultStore
	TradeStore  storage.ClosedTradeStore

	// Simulation parameters
	Simulator domain.SimulatorConfig

	// Run matrix
	Symbols         []string
	Timeframe       domain.Timeframe
	StrategyConfigs []domain.StrategyConfig

	// Optional candle range bounds (inclusive); both zero means full series
	StartMs int64
	EndMs   int64

	// Workers bounds how many runs execute at once. Parallelism is across
	// independent runs only; each run is sequential internally.
	Workers int

	Verbose bool
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Orchestrator{
		runner: backtest.NewRunner(backtest.RunnerOptions{
			CandleStore: opts.CandleStore,
			ResultStore: opts.ResultStore,
			TradeStore:  opts.TradeStore,
			Simulator:   opts.Simulator,
		}),
		symbols:         opts.Symbols,
		timeframe:       opts.Timeframe,
		strategyConfigs: opts.StrategyConfigs,
		startMs:         opts.StartMs,
		endMs:           opts.EndMs,
		workers:         workers,
		verbose:         opts.Verbose,
	}
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	RunsCompleted int
	TradesCreated int
	Results       []*domain.BacktestResult
	Errors        []string
}

// Run executes every strategy config against every symbol, with up to
// workers runs in flight at once. Runs that already exist (duplicate run
// ID) and symbols without candles are skipped; other failures are
// collected, not fatal. A context error stops dispatch and is returned
// with whatever completed before it.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}

	o.log("Running %d strategies across %d symbols (%s, %d workers)...",
		len(o.strategyConfigs), len(o.symbols), o.timeframe, o.workers)

	type job struct {
		symbol string
		cfg    domain.StrategyConfig
	}
	jobs := make([]job, 0, len(o.symbols)*len(o.strategyConfigs))
	for _, symbol := range o.symbols {
		for _, cfg := range o.strategyConfigs {
			jobs = append(jobs, job{symbol: symbol, cfg: cfg})
		}
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex // guards result and ctxErr
		ctxErr error
		sem    = make(chan struct{}, o.workers)
	)

	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return result, err
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(j job) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := o.runner.Run(ctx, backtest.RunRequest{
				Symbol:    j.symbol,
				Timeframe: o.timeframe,
				Strategy:  j.cfg,
				StartMs:   o.startMs,
				EndMs:     o.endMs,
			})

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				switch {
				case errors.Is(err, storage.ErrDuplicateKey):
					// Already ran this exact run
					o.log("  %s/%s: already exists, skipping", j.symbol, j.cfg.StrategyType)
				case errors.Is(err, backtest.ErrNoCandles):
					o.log("  %s/%s: no candles, skipping", j.symbol, j.cfg.StrategyType)
				case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
					if ctxErr == nil {
						ctxErr = err
					}
				default:
					result.Errors = append(result.Errors,
						fmt.Sprintf("backtest %s/%s: %v", j.symbol, j.cfg.StrategyType, err))
				}
				return
			}

			result.RunsCompleted++
			result.TradesCreated += len(res.Trades)
			result.Results = append(result.Results, res)
			o.log("  %s/%s: %d trades, final equity %.2f",
				j.symbol, res.StrategyID, len(res.Trades), res.FinalEquity)
		}(j)
	}
	wg.Wait()

	if ctxErr != nil {
		return result, ctxErr
	}

	o.log("Batch completed: %d runs, %d trades (%d errors)",
		result.RunsCompleted, result.TradesCreated, len(result.Errors))

	return result, nil
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.verbose {
		log.Printf("[orchestrator] "+format, args...)
	}
}
