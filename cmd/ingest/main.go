// Package main streams exchange klines into candle storage.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"crypto-backtest-lab/internal/domain"
	"crypto-backtest-lab/internal/marketdata"
	"crypto-backtest-lab/internal/observability"
	"crypto-backtest-lab/internal/storage"
	chstore "crypto-backtest-lab/internal/storage/clickhouse"
	"crypto-backtest-lab/internal/storage/memory"
	"crypto-backtest-lab/internal/storage/migrations"
)

func main() {
	// Parse flags
	wsEndpoint := flag.String("ws-endpoint", "", "Exchange WebSocket endpoint (or WS_ENDPOINT env)")
	symbols := flag.String("symbols", "", "Comma-separated symbols to ingest (required)")
	timeframe := flag.String("timeframe", "1h", "Candle timeframe: 1m, 5m, 15m, 1h, 4h, 1d")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (or CLICKHOUSE_DSN env)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of ClickHouse")
	migrate := flag.Bool("migrate", false, "Run ClickHouse migrations before ingesting")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	flushInterval := flag.Duration("flush-interval", 10*time.Second, "How often buffered closed candles are flushed")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	// .env supplies endpoints when flags are empty
	_ = godotenv.Load()
	endpoint := envOr("WS_ENDPOINT", *wsEndpoint)
	chDSN := envOr("CLICKHOUSE_DSN", *clickhouseDSN)

	if endpoint == "" {
		logger.Fatal("No WebSocket endpoint. Use --ws-endpoint or WS_ENDPOINT")
	}

	symbolList := splitList(*symbols)
	if len(symbolList) == 0 {
		logger.Fatal("No symbols specified. Use --symbols")
	}

	tf, err := domain.ParseTimeframe(*timeframe)
	if err != nil {
		logger.Fatalf("Invalid timeframe %q: %v", *timeframe, err)
	}

	if !*useMemory && chDSN == "" {
		logger.Fatal("--clickhouse-dsn is required (use --use-memory for in-memory storage)")
	}

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = run(ctx, logger, endpoint, chDSN, symbolList, tf, *useMemory, *migrate, *flushInterval)

	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// run subscribes every symbol and copies closed candles into storage.
func run(ctx context.Context, logger *log.Logger, endpoint, chDSN string, symbols []string, tf domain.Timeframe, useMemory, migrate bool, flushInterval time.Duration) error {
	// Create store
	var candleStore storage.CandleStore = memory.NewCandleStore()
	if !useMemory {
		var (
			conn *chstore.Conn
			err  error
		)
		if migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, chDSN)
		} else {
			conn, err = chstore.NewConn(ctx, chDSN)
		}
		if err != nil {
			return err
		}
		defer conn.Close()
		candleStore = chstore.NewCandleStore(conn)
	}

	// Connect the kline stream
	ws, err := marketdata.NewWSClient(ctx, endpoint, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	var wg sync.WaitGroup
	for _, symbol := range symbols {
		events, err := ws.SubscribeKlines(ctx, symbol, tf)
		if err != nil {
			return err
		}
		logger.Printf("Subscribed to %s %s klines", symbol, tf)

		wg.Add(1)
		go func(symbol string, events <-chan marketdata.KlineEvent) {
			defer wg.Done()
			ingestSymbol(ctx, logger, candleStore, symbol, tf, events, flushInterval)
		}(symbol, events)
	}

	<-ctx.Done()
	ws.Close()
	wg.Wait()
	return ctx.Err()
}

// ingestSymbol buffers closed candles and flushes them on a timer.
// Duplicate flushes are possible after reconnects; the store rejects them.
func ingestSymbol(ctx context.Context, logger *log.Logger, store storage.CandleStore, symbol string, tf domain.Timeframe, events <-chan marketdata.KlineEvent, flushInterval time.Duration) {
	var pending []domain.Candle

	flush := func() {
		if len(pending) == 0 {
			return
		}
		err := store.InsertBulk(ctx, symbol, tf, pending)
		switch {
		case err == nil:
			observability.RecordCandlesStored(symbol, string(tf), len(pending), float64(time.Now().Unix()))
		case errors.Is(err, storage.ErrDuplicateKey):
			// Mixed batch after a reconnect: retry one at a time so the
			// fresh candles still land.
			stored := 0
			for _, c := range pending {
				err := store.InsertBulk(ctx, symbol, tf, []domain.Candle{c})
				if err == nil {
					stored++
				} else if !errors.Is(err, storage.ErrDuplicateKey) {
					observability.RecordIngestionError("store_insert")
					logger.Printf("%s: insert failed: %v", symbol, err)
				}
			}
			if stored > 0 {
				observability.RecordCandlesStored(symbol, string(tf), stored, float64(time.Now().Unix()))
			}
			observability.RecordIngestionError("duplicate_candle")
		default:
			observability.RecordIngestionError("store_insert")
			logger.Printf("%s: insert failed: %v", symbol, err)
		}
		pending = pending[:0]
	}

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-ticker.C:
			flush()
		case ev, ok := <-events:
			if !ok {
				flush()
				return
			}
			observability.RecordKlineReceived(ev.Symbol, string(ev.Timeframe))
			if ev.Closed {
				pending = append(pending, ev.Candle)
			}
		}
	}
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
