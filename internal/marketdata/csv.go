package marketdata

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"crypto-backtest-lab/internal/domain"
)

// csvHeader is the candle file layout, one bar per row.
var csvHeader = []string{"timestamp_ms", "open", "high", "low", "close", "volume"}

// ReadCandlesCSV loads candles from a CSV file. A header row matching
// csvHeader is skipped if present. Rows are returned in file order;
// series validation happens at PriceSeries construction.
func ReadCandlesCSV(path string) ([]domain.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candle file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read candle file: %w", err)
	}

	var candles []domain.Candle
	for i, rec := range records {
		if i == 0 && rec[0] == csvHeader[0] {
			continue
		}
		if len(rec) != len(csvHeader) {
			return nil, fmt.Errorf("row %d: expected %d fields, got %d", i+1, len(csvHeader), len(rec))
		}

		c, err := parseCandleRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		candles = append(candles, c)
	}

	return candles, nil
}

// WriteCandlesCSV writes candles to a CSV file with a header row.
func WriteCandlesCSV(candles []domain.Candle, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, c := range candles {
		err := w.Write([]string{
			strconv.FormatInt(c.TimestampMs, 10),
			formatF(c.Open), formatF(c.High), formatF(c.Low), formatF(c.Close),
			formatF(c.Volume),
		})
		if err != nil {
			return err
		}
	}
	return w.Error()
}

func parseCandleRow(rec []string) (domain.Candle, error) {
	var (
		c   domain.Candle
		err error
	)
	if c.TimestampMs, err = strconv.ParseInt(rec[0], 10, 64); err != nil {
		return domain.Candle{}, fmt.Errorf("parse timestamp_ms: %w", err)
	}
	if c.Open, err = strconv.ParseFloat(rec[1], 64); err != nil {
		return domain.Candle{}, fmt.Errorf("parse open: %w", err)
	}
	if c.High, err = strconv.ParseFloat(rec[2], 64); err != nil {
		return domain.Candle{}, fmt.Errorf("parse high: %w", err)
	}
	if c.Low, err = strconv.ParseFloat(rec[3], 64); err != nil {
		return domain.Candle{}, fmt.Errorf("parse low: %w", err)
	}
	if c.Close, err = strconv.ParseFloat(rec[4], 64); err != nil {
		return domain.Candle{}, fmt.Errorf("parse close: %w", err)
	}
	if c.Volume, err = strconv.ParseFloat(rec[5], 64); err != nil {
		return domain.Candle{}, fmt.Errorf("parse volume: %w", err)
	}
	return c, nil
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
