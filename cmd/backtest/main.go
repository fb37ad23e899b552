// Package main runs backtests: every configured strategy against every
// configured symbol, over candles loaded from CSV or ClickHouse.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"crypto-backtest-lab/internal/domain"
	"crypto-backtest-lab/internal/marketdata"
	"crypto-backtest-lab/internal/orchestrator"
	"crypto-backtest-lab/internal/storage"
	chstore "crypto-backtest-lab/internal/storage/clickhouse"
	"crypto-backtest-lab/internal/storage/memory"
	"crypto-backtest-lab/internal/storage/migrations"
	pgstore "crypto-backtest-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	symbols := flag.String("symbols", "", "Comma-separated symbols to backtest (required)")
	timeframe := flag.String("timeframe", "1h", "Candle timeframe: 1m, 5m, 15m, 1h, 4h, 1d")
	strategies := flag.String("strategies", "SMA_CROSS:10:30",
		"Comma-separated strategy specs: SMA_CROSS:fast:slow, RSI_REVERSION:period, MACD_CROSS:fast:slow:signal")
	csvPath := flag.String("csv", "", "Load candles from a CSV file instead of ClickHouse (single symbol)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (or CLICKHOUSE_DSN env)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string for results (or POSTGRES_DSN env; empty = in-memory)")
	fromMs := flag.Int64("from-ms", 0, "Range start, Unix ms inclusive (0 = series start)")
	toMs := flag.Int64("to-ms", 0, "Range end, Unix ms inclusive (0 = series end)")
	initialCapital := flag.Float64("initial-capital", 10000, "Starting equity")
	commissionRate := flag.Float64("commission-rate", 0.001, "Commission as fraction of notional, charged each side")
	slippageBps := flag.Float64("slippage-bps", 5, "Slippage in basis points, applied against the trader")
	minConfidence := flag.Float64("min-confidence", 0.5, "Buy signals below this confidence are ignored")
	riskFraction := flag.Float64("risk-fraction", 0.02, "Equity fraction risked per trade")
	maxPositionFraction := flag.Float64("max-position-fraction", 0.10, "Max notional as fraction of equity")
	stopLossPct := flag.Float64("stop-loss-pct", 0, "Stop distance as fraction of entry (0 = strategy default)")
	takeProfitPct := flag.Float64("take-profit-pct", 0, "Target distance as fraction of entry (0 = strategy default)")
	workers := flag.Int("workers", 4, "Concurrent backtest runs")
	migrate := flag.Bool("migrate", false, "Run database migrations before backtesting")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[backtest] ", log.LstdFlags)

	// .env supplies DSNs when flags are empty
	_ = godotenv.Load()
	pgDSN := envOr("POSTGRES_DSN", *postgresDSN)
	chDSN := envOr("CLICKHOUSE_DSN", *clickhouseDSN)

	symbolList := splitList(*symbols)
	if len(symbolList) == 0 {
		logger.Fatal("No symbols specified. Use --symbols")
	}

	tf, err := domain.ParseTimeframe(*timeframe)
	if err != nil {
		logger.Fatalf("Invalid timeframe %q: %v", *timeframe, err)
	}

	strategyConfigs, err := parseStrategySpecs(*strategies, *stopLossPct, *takeProfitPct)
	if err != nil {
		logger.Fatalf("Invalid strategies: %v", err)
	}

	simCfg := domain.SimulatorConfig{
		InitialCapital: *initialCapital,
		CommissionRate: *commissionRate,
		SlippageBps:    *slippageBps,
		MinConfidence:  *minConfidence,
		Risk:           domain.DefaultRiskLimits(),
	}
	simCfg.Risk.RiskFraction = *riskFraction
	simCfg.Risk.MaxPositionFraction = *maxPositionFraction
	if err := simCfg.Validate(); err != nil {
		logger.Fatalf("Invalid simulation config: %v", err)
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling...", sig)
		cancel()
	}()

	// Candle source: CSV into a memory store, or ClickHouse
	var candleStore storage.CandleStore
	switch {
	case *csvPath != "":
		if len(symbolList) != 1 {
			logger.Fatal("--csv requires exactly one symbol")
		}
		candleStore, err = loadCSVCandles(ctx, *csvPath, symbolList[0], tf)
		if err != nil {
			logger.Fatalf("Error loading candles from %s: %v", *csvPath, err)
		}
	case chDSN != "":
		conn, connErr := connectClickhouse(ctx, chDSN, *migrate)
		if connErr != nil {
			logger.Fatalf("Error connecting to clickhouse: %v", connErr)
		}
		defer conn.Close()
		candleStore = chstore.NewCandleStore(conn)
	default:
		logger.Fatal("No candle source. Use --csv or --clickhouse-dsn")
	}

	// Result sink: postgres when a DSN is given, memory otherwise
	var resultStore storage.BacktestResultStore = memory.NewBacktestResultStore()
	var tradeStore storage.ClosedTradeStore = memory.NewClosedTradeStore()
	if pgDSN != "" {
		pool, poolErr := pgstore.NewPool(ctx, pgDSN)
		if poolErr != nil {
			logger.Fatalf("Error connecting to postgres: %v", poolErr)
		}
		defer pool.Close()
		if *migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				logger.Fatalf("Error running postgres migrations: %v", err)
			}
		}
		resultStore = pgstore.NewBacktestResultStore(pool)
		tradeStore = pgstore.NewClosedTradeStore(pool)
	}

	orch := orchestrator.New(orchestrator.Options{
		CandleStore:     candleStore,
		ResultStore:     resultStore,
		TradeStore:      tradeStore,
		Simulator:       simCfg,
		Symbols:         symbolList,
		Timeframe:       tf,
		StrategyConfigs: strategyConfigs,
		StartMs:         *fromMs,
		EndMs:           *toMs,
		Workers:         *workers,
		Verbose:         *verbose,
	})

	result, err := orch.Run(ctx)
	if err != nil {
		logger.Fatalf("Orchestrator error: %v", err)
	}

	fmt.Printf("Backtests completed:\n")
	fmt.Printf("  Runs:   %d\n", result.RunsCompleted)
	fmt.Printf("  Trades: %d\n", result.TradesCreated)
	if len(result.Errors) > 0 {
		fmt.Printf("  Errors: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}

	for _, r := range result.Results {
		printRunSummary(r)
	}

	if len(result.Errors) > 0 {
		os.Exit(1)
	}
}

// loadCSVCandles reads a candle CSV into a fresh memory store.
func loadCSVCandles(ctx context.Context, path, symbol string, tf domain.Timeframe) (storage.CandleStore, error) {
	candles, err := marketdata.ReadCandlesCSV(path)
	if err != nil {
		return nil, err
	}
	store := memory.NewCandleStore()
	if err := store.InsertBulk(ctx, symbol, tf, candles); err != nil {
		return nil, err
	}
	return store, nil
}

// connectClickhouse opens a connection, running migrations first when asked.
func connectClickhouse(ctx context.Context, dsn string, migrate bool) (*chstore.Conn, error) {
	if migrate {
		return migrations.RunClickhouseMigrations(ctx, dsn)
	}
	return chstore.NewConn(ctx, dsn)
}

// parseStrategySpecs parses the --strategies flag.
// Specs are colon-separated: type then its integer periods.
func parseStrategySpecs(specs string, stopLossPct, takeProfitPct float64) ([]domain.StrategyConfig, error) {
	var configs []domain.StrategyConfig
	for _, spec := range splitList(specs) {
		parts := strings.Split(spec, ":")
		cfg := domain.StrategyConfig{StrategyType: strings.ToUpper(parts[0])}

		periods, err := parsePeriods(parts[1:])
		if err != nil {
			return nil, fmt.Errorf("spec %q: %w", spec, err)
		}

		switch cfg.StrategyType {
		case domain.StrategyTypeSMACross:
			if len(periods) != 2 {
				return nil, fmt.Errorf("spec %q: SMA_CROSS needs fast and slow periods", spec)
			}
			cfg.FastPeriod, cfg.SlowPeriod = &periods[0], &periods[1]
		case domain.StrategyTypeRSIReversion:
			if len(periods) != 1 {
				return nil, fmt.Errorf("spec %q: RSI_REVERSION needs one period", spec)
			}
			cfg.RSIPeriod = &periods[0]
		case domain.StrategyTypeMACDCross:
			if len(periods) != 3 {
				return nil, fmt.Errorf("spec %q: MACD_CROSS needs fast, slow and signal periods", spec)
			}
			cfg.FastPeriod, cfg.SlowPeriod, cfg.SignalPeriod = &periods[0], &periods[1], &periods[2]
		default:
			return nil, fmt.Errorf("spec %q: unknown strategy type", spec)
		}

		if stopLossPct > 0 {
			v := stopLossPct
			cfg.StopLossPct = &v
		}
		if takeProfitPct > 0 {
			v := takeProfitPct
			cfg.TakeProfitPct = &v
		}

		configs = append(configs, cfg)
	}
	return configs, nil
}

func parsePeriods(parts []string) ([]int, error) {
	periods := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("bad period %q", p)
		}
		periods = append(periods, n)
	}
	return periods, nil
}

func printRunSummary(r *domain.BacktestResult) {
	s := r.Summary
	pf := fmt.Sprintf("%.2f", s.ProfitFactor)
	if math.IsInf(s.ProfitFactor, 1) {
		pf = "inf"
	}
	fmt.Printf("\n%s %s %s (run %s)\n", r.StrategyID, r.Symbol, r.Timeframe, r.RunID)
	fmt.Printf("  Trades:        %d (%d W / %d L, win rate %.2f%%)\n",
		s.TotalTrades, s.WinningTrades, s.LosingTrades, s.WinRate*100)
	fmt.Printf("  Net P&L:       %.2f (%.2f%%), final equity %.2f\n",
		s.TotalPnL, s.TotalPnLPct*100, r.FinalEquity)
	fmt.Printf("  Profit factor: %s, Sharpe %.2f, max drawdown %.2f%%\n",
		pf, s.SharpeRatio, s.MaxDrawdown*100)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOr(key, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(key)
}
