package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/fazecat/mogulfx/Internal/types"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := LoadLocation(DefaultTimezone)
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	return loc
}

// bars builds 5 minute candles from [open, high, low, close] rows starting at start.
func bars(start time.Time, rows ...[4]float64) []types.Candle {
	candles := make([]types.Candle, len(rows))
	for i, r := range rows {
		candles[i] = types.Candle{
			Time:  start.Add(time.Duration(i) * 5 * time.Minute),
			Open:  r[0],
			High:  r[1],
			Low:   r[2],
			Close: r[3],
		}
	}
	return candles
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
