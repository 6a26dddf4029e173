package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fazecat/mogulfx/Internal/types"
)

var BacktestHeader = []string{"Date", "Trade", "Level", "Stop Loss", "Take Profit", "Result"}

// WriteBacktestCSV writes one line per backtest row. Prices that were never
// set are left blank.
func WriteBacktestCSV(w io.Writer, rows []types.BacktestRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(BacktestHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{r.Date, r.Trade, price(r.Level), price(r.StopLoss), price(r.TakeProfit), string(r.Outcome)}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func SaveBacktestCSV(path string, rows []types.BacktestRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := WriteBacktestCSV(f, rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteEquityCSV writes the simulated balance after each row.
func WriteEquityCSV(w io.Writer, curve []float64) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"step", "balance"})
	for i, v := range curve {
		cw.Write([]string{strconv.Itoa(i), strconv.FormatFloat(v, 'f', 2, 64)})
	}
	cw.Flush()
	return cw.Error()
}

func price(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
