package strategy

import (
	"testing"
	"time"

	"github.com/fazecat/mogulfx/Internal/types"
)

func TestApproximatePsychLevel(t *testing.T) {
	tests := []struct {
		price float64
		want  float64
	}{
		{1.23158, 1.23},
		{1.2345, 1.235},
		{1.2360, 1.235},
		{1.2375, 1.24},
		{1.2399, 1.24},
		{0.6512, 0.65},
	}
	for _, tt := range tests {
		if got := ApproximatePsychLevel(tt.price); !almostEqual(got, tt.want) {
			t.Errorf("ApproximatePsychLevel(%v) = %v, want %v", tt.price, got, tt.want)
		}
	}
}

func TestRunPsychLevel(t *testing.T) {
	loc := newYork(t)
	day := func(d int, rows ...[4]float64) []types.Candle {
		start := time.Date(2024, 3, d, 8, 0, 0, 0, loc)
		out := make([]types.Candle, len(rows))
		for i, r := range rows {
			out[i] = types.Candle{Time: start.Add(time.Duration(i) * time.Minute), Open: r[0], High: r[1], Low: r[2], Close: r[3]}
		}
		return out
	}

	var candles []types.Candle
	// Tuesday: level 1.2300, sell at 1.2315 then hit 1.2265
	candles = append(candles, day(5,
		[4]float64{1.23158, 1.2320, 1.2310, 1.2318},
		[4]float64{1.2300, 1.2305, 1.2260, 1.2262},
	)...)
	// Wednesday: same sell, stopped at 1.2325
	candles = append(candles, day(6,
		[4]float64{1.23158, 1.2320, 1.2310, 1.2318},
		[4]float64{1.2320, 1.2330, 1.2300, 1.2328},
	)...)
	// Saturday session is ignored
	candles = append(candles, day(9,
		[4]float64{1.23158, 1.2320, 1.2310, 1.2318},
		[4]float64{1.2300, 1.2305, 1.2260, 1.2262},
	)...)

	report := RunPsychLevel(candles, loc, DefaultPsychParams())

	if len(report.Trades) != 2 {
		t.Fatalf("got %d trades, want 2", len(report.Trades))
	}
	if report.Wins != 1 || report.Losses != 1 {
		t.Errorf("wins/losses = %d/%d, want 1/1", report.Wins, report.Losses)
	}
	if report.TotalR != 4 {
		t.Errorf("TotalR = %v, want 4", report.TotalR)
	}
	if !almostEqual(report.Balance, 1187.5) {
		t.Errorf("Balance = %v, want 1187.5", report.Balance)
	}
	if len(report.Curve) != 2 || !almostEqual(report.Curve[0], 1250) {
		t.Errorf("Curve = %v", report.Curve)
	}
	first := report.Trades[0]
	if first.Direction != types.DirectionSell || !almostEqual(first.Entry, 1.2315) || !almostEqual(first.TakeProfit, 1.2265) {
		t.Errorf("first trade = %+v", first)
	}
	if report.WinRate() != 50 {
		t.Errorf("WinRate() = %v, want 50", report.WinRate())
	}
}
