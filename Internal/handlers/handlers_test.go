package handlers

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fazecat/mogulfx/Internal/broker"
	"github.com/fazecat/mogulfx/Internal/handlers/risk"
	"github.com/fazecat/mogulfx/Internal/strategy"
	"github.com/fazecat/mogulfx/Internal/types"
	"github.com/fazecat/mogulfx/Internal/utils/config"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := strategy.LoadLocation(strategy.DefaultTimezone)
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	return loc
}

func seededPaper(loc *time.Location) *broker.PaperTerminal {
	start := time.Date(2024, 3, 5, 9, 25, 0, 0, loc)
	rows := [][4]float64{
		{1.1010, 1.1015, 1.0995, 1.1000},
		{1.1005, 1.1022, 1.1003, 1.1020},
		{1.1020, 1.1025, 1.1012, 1.1018},
		{1.1020, 1.1100, 1.1015, 1.1090},
	}
	candles := make([]types.Candle, len(rows))
	for i, r := range rows {
		candles[i] = types.Candle{Time: start.Add(time.Duration(i) * 5 * time.Minute), Open: r[0], High: r[1], Low: r[2], Close: r[3]}
	}
	candles = append(candles, types.Candle{Time: time.Date(2024, 3, 6, 9, 0, 0, 0, loc), Open: 1.109, High: 1.1092, Low: 1.1085, Close: 1.1088})

	paper := broker.NewPaperTerminal(nil)
	paper.SetCandles("EURUSD", candles)
	return paper
}

func newTestApp(feed broker.HistoryFeed, input string) (*App, *bytes.Buffer) {
	cfg := config.Defaults()
	out := &bytes.Buffer{}
	app := NewApp(cfg, feed, nil, risk.NewManager(cfg.Risk), nil)
	app.In = bufio.NewReader(strings.NewReader(input))
	app.Out = out
	return app, out
}

func TestHandleBacktest(t *testing.T) {
	loc := newYork(t)
	app, out := newTestApp(seededPaper(loc), "eurusd\n2024-03-04\n2024-03-06\n\n")

	app.HandleBacktest(context.Background())

	run := app.LastBacktest()
	if run == nil {
		t.Fatalf("no backtest stored, output:\n%s", out.String())
	}
	if run.Symbol != "EURUSD" || run.Mode != strategy.ModeRetest || len(run.Rows) != 2 {
		t.Fatalf("run = %+v", run)
	}
	for _, want := range []string{"2024-03-05", "Win", "No anchor candle", "Wins: 1 | Losses: 0"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestHandleBacktestBadInput(t *testing.T) {
	loc := newYork(t)
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty symbol", "\n", "Invalid symbol"},
		{"reversed dates", "EURUSD\n2024-03-06\n2024-03-04\n", "❌"},
		{"unknown mode", "EURUSD\n2024-03-04\n2024-03-06\nsideways\n", "unknown strategy mode"},
		{"no data", "GBPUSD\n2024-03-04\n2024-03-06\n\n", "Backtest failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, out := newTestApp(seededPaper(loc), tt.input)
			app.HandleBacktest(context.Background())
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out.String())
			}
			if app.LastBacktest() != nil {
				t.Error("failed run should not be stored")
			}
		})
	}
}

func TestFollowUpsNeedBacktest(t *testing.T) {
	app, out := newTestApp(broker.NewPaperTerminal(nil), "")
	app.HandleSummary()
	app.HandleSimulate()
	app.HandleExportCSV()
	if got := strings.Count(out.String(), "Run a backtest first"); got != 3 {
		t.Errorf("warnings = %d, want 3:\n%s", got, out.String())
	}
}

func TestExportAndSimulate(t *testing.T) {
	loc := newYork(t)
	path := filepath.Join(t.TempDir(), "eurusd.csv")
	app, out := newTestApp(seededPaper(loc), "EURUSD\n2024-03-04\n2024-03-06\n\n"+path+"\n")

	app.HandleBacktest(context.Background())
	app.HandleExportCSV()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("export not written: %v\n%s", err, out.String())
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 || lines[0] != "Date,Trade,Level,Stop Loss,Take Profit,Result" {
		t.Errorf("csv = %q", lines)
	}

	out.Reset()
	app.HandleSimulate()
	if !strings.Contains(out.String(), "Final Balance:         $12000.00") {
		t.Errorf("simulation output:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Max Drawdown:          0.00%") {
		t.Errorf("simulation output:\n%s", out.String())
	}
}

func TestHandleLotSize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"eurusd", "EURUSD\n1.1015\n1.0995\n", "EURUSD: 0.75 lots"},
		{"bad entry", "EURUSD\nabc\n", "invalid number"},
		{"zero distance", "EURUSD\n1.1\n1.1\n", "stop loss equals entry"},
		{"jpy without rate", "GBPJPY\n190.50\n190.30\n\n", "conversion rate unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, out := newTestApp(broker.NewPaperTerminal(nil), tt.input)
			app.HandleLotSize()
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out.String())
			}
		})
	}
}

func TestPrintPsychReport(t *testing.T) {
	report := strategy.PsychReport{
		Trades: []strategy.PsychTrade{
			{Date: "2024-03-05", Direction: types.DirectionSell, Entry: 1.1015, StopLoss: 1.1025, TakeProfit: 1.0965, Outcome: types.OutcomeWin, Profit: 250, Balance: 1250},
		},
		Wins:    1,
		TotalR:  5,
		Balance: 1250,
	}
	var buf bytes.Buffer
	PrintPsychReport(&buf, "EURUSD", report)
	for _, want := range []string{"PSYCH LEVEL EURUSD", "Sell", "Win rate: 100.0%", "+5.0R", "$1250.00"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}
