package strategy

import (
	"errors"
	"fmt"
	"time"

	"github.com/fazecat/mogulfx/Internal/types"
)

var ErrRangeIncomplete = errors.New("range needs exactly 4 hourly candles")

const rangeCandleCount = 4

// RangeSession describes the early range and the window watched for a
// breach of it, both in session-local clock time.
type RangeSession struct {
	RangeStart Clock
	RangeHours int
	WatchStart Clock
	WatchHours int
}

func DefaultRangeSession() RangeSession {
	return RangeSession{
		RangeStart: Clock{Hour: 5},
		RangeHours: 3,
		WatchStart: Clock{Hour: 9},
		WatchHours: 8,
	}
}

// RangeWindow is the span whose hourly candles form the range. Both ends
// are candle open times, so a 3h window covers 4 candles.
func (s RangeSession) RangeWindow(date time.Time, loc *time.Location) (time.Time, time.Time) {
	from := s.RangeStart.On(date, loc)
	return from, from.Add(time.Duration(s.RangeHours) * time.Hour)
}

func (s RangeSession) WatchWindow(date time.Time, loc *time.Location) (time.Time, time.Time) {
	from := s.WatchStart.On(date, loc)
	return from, from.Add(time.Duration(s.WatchHours) * time.Hour)
}

type Breach struct {
	Side  string
	Price float64
	Time  time.Time
}

type RangeBreachResult struct {
	Date   string
	High   float64
	Low    float64
	Breach *Breach
	Err    error
}

func (r RangeBreachResult) String() string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("%s: No data for range (%v)", r.Date, r.Err)
	case r.Breach == nil:
		return fmt.Sprintf("%s: Not breached", r.Date)
	default:
		return fmt.Sprintf("%s: %s breached at %g", r.Date, r.Breach.Side, r.Breach.Price)
	}
}

func RangeHighLow(candles []types.Candle) (high, low float64, err error) {
	if len(candles) == 0 {
		return 0, 0, ErrRangeIncomplete
	}
	high, low = candles[0].High, candles[0].Low
	for _, c := range candles[1:] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	return high, low, nil
}

// FirstBreach finds the first tick whose ask leaves [low, high].
func FirstBreach(ticks []types.Tick, high, low float64) (Breach, bool) {
	for _, t := range ticks {
		if t.Ask > high {
			return Breach{Side: "High", Price: t.Ask, Time: t.Time}, true
		}
		if t.Ask < low {
			return Breach{Side: "Low", Price: t.Ask, Time: t.Time}, true
		}
	}
	return Breach{}, false
}

func EvaluateRangeBreach(date time.Time, rangeCandles []types.Candle, ticks []types.Tick) RangeBreachResult {
	result := RangeBreachResult{Date: date.Format("2006-01-02")}
	if len(rangeCandles) != rangeCandleCount {
		result.Err = fmt.Errorf("%w: got %d", ErrRangeIncomplete, len(rangeCandles))
		return result
	}
	result.High, result.Low, _ = RangeHighLow(rangeCandles)
	if b, ok := FirstBreach(ticks, result.High, result.Low); ok {
		result.Breach = &b
	}
	return result
}
