package metrics

import (
	"math"
	"testing"

	"github.com/fazecat/mogulfx/Internal/types"
)

func row(date string, outcome types.Outcome) types.BacktestRow {
	r := 0.0
	switch outcome {
	case types.OutcomeWin:
		r = 4
	case types.OutcomeLoss:
		r = -1
	}
	return types.BacktestRow{Date: date, Symbol: "EURUSD", Outcome: outcome, R: r}
}

func sampleRows() []types.BacktestRow {
	return []types.BacktestRow{
		row("2024-01-30", types.OutcomeWin),
		row("2024-01-31", types.OutcomeLoss),
		row("2024-02-01", types.OutcomeNoEntry),
		row("2024-02-02", types.OutcomeLoss),
		row("2024-02-05", types.OutcomeWin),
		row("2024-02-06", types.OutcomeExpired),
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleRows(), 4)

	if s.Wins != 2 || s.Losses != 2 || s.Trades != 4 {
		t.Fatalf("wins/losses/trades = %d/%d/%d, want 2/2/4", s.Wins, s.Losses, s.Trades)
	}
	if s.TotalR != 6 {
		t.Errorf("TotalR = %v, want 6", s.TotalR)
	}
	if s.WinRatio != 50 {
		t.Errorf("WinRatio = %v, want 50", s.WinRatio)
	}
	if !s.SpansMonths {
		t.Error("expected SpansMonths")
	}
}

func TestSummarizeNoTrades(t *testing.T) {
	s := Summarize([]types.BacktestRow{row("2024-01-02", types.OutcomeNoAnchor)}, 4)
	if s.Trades != 0 || s.WinRatio != 0 || s.TotalR != 0 {
		t.Errorf("unexpected summary %+v", s)
	}
	if s.SpansMonths {
		t.Error("single month should not span months")
	}
}

func TestMonthlyR(t *testing.T) {
	got := MonthlyR(sampleRows(), 4)
	want := []MonthR{{Month: "2024-01", R: 3}, {Month: "2024-02", R: 3}}

	if len(got) != len(want) {
		t.Fatalf("got %d months, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("month %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSimulateEquity(t *testing.T) {
	curve := SimulateEquity(sampleRows(), DefaultSimulation())
	want := []float64{10000, 12000, 11500, 11500, 11000, 13000, 13000}

	if len(curve) != len(want) {
		t.Fatalf("curve has %d points, want %d", len(curve), len(want))
	}
	for i := range want {
		if curve[i] != want[i] {
			t.Errorf("curve[%d] = %v, want %v", i, curve[i], want[i])
		}
	}
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name  string
		curve []float64
		want  float64
	}{
		{"empty", nil, 0},
		{"only rising", []float64{100, 110, 120}, 0},
		{"single dip", []float64{100, 120, 90, 130}, 25},
		{"deepest wins", []float64{100, 80, 100, 200, 100}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaxDrawdown(tt.curve); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("MaxDrawdown() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSharpeRatio(t *testing.T) {
	if got := CalculateSharpeRatio(nil, 0); got != 0 {
		t.Errorf("empty returns = %v, want 0", got)
	}
	if got := CalculateSharpeRatio([]float64{1, 1, 1}, 0); got != 0 {
		t.Errorf("flat returns = %v, want 0", got)
	}
	// mean 1.5, population std dev 2.5
	if got := CalculateSharpeRatio([]float64{4, -1, 4, -1}, 0); math.Abs(got-0.6) > 1e-9 {
		t.Errorf("Sharpe = %v, want 0.6", got)
	}
}

func TestCalculateSymbolStats(t *testing.T) {
	rows := append(sampleRows(), types.BacktestRow{Date: "2024-02-07", Symbol: "USDJPY", Outcome: types.OutcomeWin, R: 4})
	stats := CalculateSymbolStats(rows, 4)

	eur, ok := stats["EURUSD"]
	if !ok {
		t.Fatal("missing EURUSD stats")
	}
	if eur.TotalTrades != 4 || eur.TotalR != 6 {
		t.Errorf("EURUSD stats = %+v", eur)
	}
	if jpy := stats["USDJPY"]; jpy == nil || jpy.Wins != 1 {
		t.Errorf("USDJPY stats = %+v", jpy)
	}
}
