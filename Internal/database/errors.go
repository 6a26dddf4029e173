package datafeed

import (
	"errors"
	"time"

	"github.com/fazecat/mogulfx/Internal/types"
)

var (
	ErrNoData        = errors.New("no data returned")
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// Resolver maps a configured symbol to its instrument definition.
type Resolver func(symbol string) (types.Instrument, bool)

// CandlesBefore drops candles stamped at or after end, keeping history
// requests half-open.
func CandlesBefore(candles []types.Candle, end time.Time) []types.Candle {
	out := candles[:0:0]
	for _, c := range candles {
		if c.Time.Before(end) {
			out = append(out, c)
		}
	}
	return out
}
