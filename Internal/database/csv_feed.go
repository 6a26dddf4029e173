package datafeed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fazecat/mogulfx/Internal/types"
)

var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// CSVFeed serves history from exported files in Dir:
//
//	<SYMBOL>_<TF>.csv   Date,Open,High,Low,Close[,Volume]
//	<SYMBOL>_ticks.csv  Date,Bid,Ask
//
// Timestamps without a zone are read as UTC.
type CSVFeed struct {
	Dir string
}

func NewCSVFeed(dir string) *CSVFeed {
	return &CSVFeed{Dir: dir}
}

func (f *CSVFeed) candlePath(symbol string, tf types.Timeframe) string {
	path := filepath.Join(f.Dir, fmt.Sprintf("%s_%s.csv", symbol, tf))
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return filepath.Join(f.Dir, symbol+".csv")
}

func (f *CSVFeed) Candles(ctx context.Context, symbol string, tf types.Timeframe, from, to time.Time) ([]types.Candle, error) {
	rows, err := readCSV(f.candlePath(symbol, tf))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}

	var candles []types.Candle
	for i, row := range rows {
		if len(row) < 5 {
			return nil, fmt.Errorf("%s line %d: want at least 5 columns, got %d", symbol, i+2, len(row))
		}
		c, err := parseCandle(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", symbol, i+2, err)
		}
		if inRange(c.Time, from, to) {
			candles = append(candles, c)
		}
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%s %s: %w", symbol, tf, ErrNoData)
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	return candles, nil
}

func (f *CSVFeed) Ticks(ctx context.Context, symbol string, from, to time.Time) ([]types.Tick, error) {
	rows, err := readCSV(filepath.Join(f.Dir, symbol+"_ticks.csv"))
	if err != nil {
		return nil, fmt.Errorf("%s ticks: %w", symbol, err)
	}

	var ticks []types.Tick
	for i, row := range rows {
		if len(row) < 3 {
			return nil, fmt.Errorf("%s ticks line %d: want 3 columns", symbol, i+2)
		}
		ts, err := parseTime(row[0])
		if err != nil {
			return nil, err
		}
		bid, err1 := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		ask, err2 := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err := errors.Join(err1, err2); err != nil {
			return nil, fmt.Errorf("%s ticks line %d: %w", symbol, i+2, err)
		}
		if inRange(ts, from, to) {
			ticks = append(ticks, types.Tick{Time: ts, Bid: bid, Ask: ask})
		}
	}
	if len(ticks) == 0 {
		return nil, fmt.Errorf("%s ticks: %w", symbol, ErrNoData)
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i].Time.Before(ticks[j].Time) })
	return ticks, nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

// readCSV returns the data rows, skipping a header row when present.
func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrUnknownSymbol
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if first && len(row) > 0 && isHeader(row[0]) {
			first = false
			continue
		}
		first = false
		rows = append(rows, row)
	}
	return rows, nil
}

func isHeader(first string) bool {
	_, err := parseTime(first)
	return err != nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range csvTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func parseCandle(row []string) (types.Candle, error) {
	ts, err := parseTime(row[0])
	if err != nil {
		return types.Candle{}, err
	}
	values := make([]float64, 0, 5)
	for _, field := range row[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return types.Candle{}, fmt.Errorf("parse %q: %w", field, err)
		}
		values = append(values, v)
	}
	c := types.Candle{Time: ts, Open: values[0], High: values[1], Low: values[2], Close: values[3]}
	if len(values) > 4 {
		c.Volume = values[4]
	}
	return c, nil
}
