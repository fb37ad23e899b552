// Package main renders aggregate backtest reports from stored results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"crypto-backtest-lab/internal/observability"
	"crypto-backtest-lab/internal/reporting"
	pgstore "crypto-backtest-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	outputDir := flag.String("output-dir", "docs", "Output directory for generated files")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (or POSTGRES_DSN env)")
	runID := flag.String("run-id", "", "Also export the trade ledger CSV for one run")
	fixedClock := flag.String("clock", "", "Fixed RFC3339 generation time for deterministic output")
	flag.Parse()

	ctx := context.Background()

	// .env supplies the DSN when the flag is empty
	_ = godotenv.Load()
	dsn := *postgresDSN
	if dsn == "" {
		dsn = os.Getenv("POSTGRES_DSN")
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn or POSTGRES_DSN is required")
		os.Exit(1)
	}

	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	resultStore := pgstore.NewBacktestResultStore(pool)
	tradeStore := pgstore.NewClosedTradeStore(pool)

	gen := reporting.NewGenerator(resultStore, tradeStore)
	if *fixedClock != "" {
		t, err := time.Parse(time.RFC3339, *fixedClock)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing --clock: %v\n", err)
			os.Exit(1)
		}
		gen = gen.WithClock(func() time.Time { return t })
	}

	report, err := gen.Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output dir: %v\n", err)
		os.Exit(1)
	}

	mdPath := filepath.Join(*outputDir, "BACKTEST_REPORT.md")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing markdown report: %v\n", err)
		os.Exit(1)
	}

	csvPath := filepath.Join(*outputDir, "run_metrics.csv")
	if err := os.WriteFile(csvPath, []byte(reporting.RenderCSV(report.RunMetrics)), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing metrics CSV: %v\n", err)
		os.Exit(1)
	}

	outputs := []string{mdPath, csvPath}

	if *runID != "" {
		trades, err := tradeStore.GetByRunID(ctx, *runID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading trades for run %s: %v\n", *runID, err)
			os.Exit(1)
		}
		tradesPath := filepath.Join(*outputDir, "trades_"+*runID+".csv")
		if err := os.WriteFile(tradesPath, []byte(reporting.RenderTradesCSV(trades)), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing trades CSV: %v\n", err)
			os.Exit(1)
		}
		outputs = append(outputs, tradesPath)
	}

	observability.RecordReportGenerated()

	fmt.Println("Report generated successfully:")
	for _, path := range outputs {
		fmt.Printf("  - %s\n", path)
	}
}
