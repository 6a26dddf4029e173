package formatting

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Separator returns a line separator of given width
func Separator(width int) string {
	return strings.Repeat("=", width)
}

func Divider(width int) string {
	return strings.Repeat("-", width)
}

var dateFormats = []string{
	"2006-01-02", // YYYY-MM-DD (standard)
	"02/01/2006", // DD/MM/YYYY
	"02.01.2006", // DD.MM.YYYY
}

// ParseDate parses a calendar date as midnight in loc.
func ParseDate(dateStr string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	dateStr = strings.TrimSpace(dateStr)
	for _, format := range dateFormats {
		if t, err := time.ParseInLocation(format, dateStr, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q (use YYYY-MM-DD)", dateStr)
}

// ParseDateRange parses both ends and rejects a start after the end.
func ParseDateRange(fromStr, toStr string, loc *time.Location) (time.Time, time.Time, error) {
	from, err := ParseDate(fromStr, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := ParseDate(toStr, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s is after end %s", fromStr, toStr)
	}
	return from, to, nil
}

// Price prints v with the shortest exact representation, or "-" when unset.
func Price(v float64) string {
	if v == 0 {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func SignedR(r float64) string {
	return fmt.Sprintf("%+.1fR", r)
}
