package strategy

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fazecat/mogulfx/Internal/types"
)

const DefaultTimezone = "America/New_York"

// Clock is a wall-clock time of day in the session timezone.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On returns the instant the clock reads on the given date in loc.
func (c Clock) On(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, loc)
}

func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", name, err)
	}
	return loc, nil
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// BusinessDays lists every date in [from, to] except Saturdays and Sundays.
// Dates are returned at midnight in from's location.
func BusinessDays(from, to time.Time) []time.Time {
	loc := from.Location()
	y, m, d := from.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)
	ty, tm, td := to.Date()
	last := time.Date(ty, tm, td, 0, 0, 0, 0, loc)

	var days []time.Time
	for !day.After(last) {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days = append(days, day)
		}
		day = day.AddDate(0, 0, 1)
	}
	return days
}

// FindAnchorCandle returns the index of the first candle opening exactly at
// clock in loc, or -1.
func FindAnchorCandle(candles []types.Candle, clock Clock, loc *time.Location) int {
	for i, c := range candles {
		t := c.Time.In(loc)
		if t.Hour() == clock.Hour && t.Minute() == clock.Minute && t.Second() == 0 {
			return i
		}
	}
	return -1
}

// FindAnchorOnDate is FindAnchorCandle restricted to one local date.
func FindAnchorOnDate(candles []types.Candle, date time.Time, clock Clock, loc *time.Location) int {
	for i, c := range candles {
		t := c.Time.In(loc)
		if SameDate(t, date) && t.Hour() == clock.Hour && t.Minute() == clock.Minute && t.Second() == 0 {
			return i
		}
	}
	return -1
}

// CandlesOnDate returns the candles whose local date in loc matches date.
func CandlesOnDate(candles []types.Candle, date time.Time, loc *time.Location) []types.Candle {
	var out []types.Candle
	for _, c := range candles {
		if SameDate(c.Time.In(loc), date) {
			out = append(out, c)
		}
	}
	return out
}

func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// TimeUntilAnchor reports how long until the anchor candle opens today.
// The bool is false once the anchor time has passed.
func TimeUntilAnchor(now time.Time, clock Clock, loc *time.Location) (time.Duration, bool) {
	local := now.In(loc)
	anchor := clock.On(local, loc)
	if !local.Before(anchor) {
		return 0, false
	}
	return anchor.Sub(local), true
}
