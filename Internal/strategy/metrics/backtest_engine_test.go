package metrics

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/fazecat/mogulfx/Internal/broker"
	"github.com/fazecat/mogulfx/Internal/strategy"
	"github.com/fazecat/mogulfx/Internal/types"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := strategy.LoadLocation(strategy.DefaultTimezone)
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	return loc
}

func series(start time.Time, step time.Duration, rows ...[4]float64) []types.Candle {
	candles := make([]types.Candle, len(rows))
	for i, r := range rows {
		candles[i] = types.Candle{
			Time: start.Add(time.Duration(i) * step),
			Open: r[0], High: r[1], Low: r[2], Close: r[3],
		}
	}
	return candles
}

func testEngine(feed broker.HistoryFeed, loc *time.Location) *Engine {
	return NewEngine(feed, EngineConfig{
		Timeframe: types.Timeframe5Min,
		Anchor:    strategy.Clock{Hour: 9, Minute: 25},
		Location:  loc,
		Params:    strategy.DefaultParams(),
		Range:     strategy.DefaultRangeSession(),
		Psych:     strategy.DefaultPsychParams(),
	})
}

func TestEngineRun(t *testing.T) {
	loc := newYork(t)
	paper := broker.NewPaperTerminal(nil)

	tuesday := series(time.Date(2024, 3, 5, 9, 25, 0, 0, loc), 5*time.Minute,
		[4]float64{1.1010, 1.1015, 1.0995, 1.1000}, // bearish anchor, buy above
		[4]float64{1.1005, 1.1022, 1.1003, 1.1020}, // closes above
		[4]float64{1.1020, 1.1025, 1.1012, 1.1018}, // retest
		[4]float64{1.1020, 1.1100, 1.1015, 1.1090}, // target
	)
	// no 09:25 candle on Wednesday
	wednesday := series(time.Date(2024, 3, 6, 9, 0, 0, 0, loc), 5*time.Minute,
		[4]float64{1.1090, 1.1092, 1.1085, 1.1088},
		[4]float64{1.1088, 1.1091, 1.1080, 1.1084},
	)
	paper.SetCandles("EURUSD", append(tuesday, wednesday...))

	from := time.Date(2024, 3, 4, 0, 0, 0, 0, loc)
	to := time.Date(2024, 3, 6, 0, 0, 0, 0, loc)
	rows, err := testEngine(paper, loc).Run(context.Background(), "EURUSD", from, to)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (Monday has no data): %+v", len(rows), rows)
	}

	win := rows[0]
	if win.Date != "2024-03-05" || win.Trade != "Buy" || win.Outcome != types.OutcomeWin {
		t.Errorf("Tuesday row = %+v", win)
	}
	if win.Level != 1.1015 || win.StopLoss != 1.0995 || win.TakeProfit != 1.1095 || win.R != 4 {
		t.Errorf("Tuesday levels = %+v", win)
	}

	missing := rows[1]
	if missing.Date != "2024-03-06" || missing.Outcome != types.OutcomeNoAnchor || missing.Trade != "No trade" {
		t.Errorf("Wednesday row = %+v", missing)
	}
}

func TestEngineRunNoData(t *testing.T) {
	loc := newYork(t)
	paper := broker.NewPaperTerminal(nil)
	from := time.Date(2024, 3, 4, 0, 0, 0, 0, loc)

	if _, err := testEngine(paper, loc).Run(context.Background(), "GBPUSD", from, from); err == nil {
		t.Error("expected error for unknown symbol")
	}
}

func TestRowFromSignalWithoutTrade(t *testing.T) {
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	signal := types.TradeSignal{Symbol: "EURUSD", Direction: types.DirectionSell, Level: 1.2, Outcome: types.OutcomeNoConfirmation}

	got := RowFromSignal(day, signal, 4)
	if got.Trade != "No trade" || got.Level != 1.2 || got.StopLoss != 0 || got.R != 0 {
		t.Errorf("RowFromSignal() = %+v", got)
	}
}

func TestEngineRunRangeBreach(t *testing.T) {
	loc := newYork(t)
	paper := broker.NewPaperTerminal(nil)

	tue := series(time.Date(2024, 3, 5, 5, 0, 0, 0, loc), time.Hour,
		[4]float64{1.1000, 1.1010, 1.0990, 1.1005},
		[4]float64{1.1005, 1.1020, 1.1000, 1.1010},
		[4]float64{1.1010, 1.1015, 1.0995, 1.1000},
		[4]float64{1.1000, 1.1008, 1.0985, 1.0990},
	)
	wed := series(time.Date(2024, 3, 6, 5, 0, 0, 0, loc), time.Hour,
		[4]float64{1.1000, 1.1010, 1.0990, 1.1005},
	)
	paper.SetCandles("EURUSD", append(tue, wed...))
	paper.SetTicks("EURUSD", []types.Tick{
		{Time: time.Date(2024, 3, 5, 8, 30, 0, 0, loc), Bid: 1.1030, Ask: 1.1031}, // before the watch window
		{Time: time.Date(2024, 3, 5, 9, 30, 0, 0, loc), Bid: 1.1010, Ask: 1.1011},
		{Time: time.Date(2024, 3, 5, 10, 0, 0, 0, loc), Bid: 1.0983, Ask: 1.0984},
	})

	from := time.Date(2024, 3, 5, 0, 0, 0, 0, loc)
	to := time.Date(2024, 3, 6, 0, 0, 0, 0, loc)
	results, err := testEngine(paper, loc).RunRangeBreach(context.Background(), "EURUSD", from, to)
	if err != nil {
		t.Fatalf("RunRangeBreach() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	if got := results[0].String(); got != "2024-03-05: Low breached at 1.0984" {
		t.Errorf("Tuesday = %q", got)
	}
	if results[0].High != 1.1020 || results[0].Low != 1.0985 {
		t.Errorf("range = %v/%v", results[0].High, results[0].Low)
	}
	if results[1].Err == nil {
		t.Errorf("Wednesday should report an incomplete range, got %s", results[1])
	}
}

// inclusiveFeed also returns the bar stamped at the end of a request.
type inclusiveFeed struct {
	*broker.PaperTerminal
}

func (f inclusiveFeed) Candles(ctx context.Context, symbol string, tf types.Timeframe, from, to time.Time) ([]types.Candle, error) {
	return f.PaperTerminal.Candles(ctx, symbol, tf, from, to.Add(time.Nanosecond))
}

func TestEngineRunRangeBreachInclusiveFeed(t *testing.T) {
	loc := newYork(t)
	paper := broker.NewPaperTerminal(nil)
	// round the clock market: the 09:00 bar exists and spikes above the range
	paper.SetCandles("BTCUSD", series(time.Date(2024, 3, 5, 5, 0, 0, 0, loc), time.Hour,
		[4]float64{100, 110, 95, 105},
		[4]float64{105, 120, 100, 110},
		[4]float64{110, 115, 98, 100},
		[4]float64{100, 108, 96, 99},
		[4]float64{99, 150, 90, 140},
	))
	paper.SetTicks("BTCUSD", []types.Tick{
		{Time: time.Date(2024, 3, 5, 9, 30, 0, 0, loc), Bid: 121, Ask: 121.5},
	})

	day := time.Date(2024, 3, 5, 0, 0, 0, 0, loc)
	results, err := testEngine(inclusiveFeed{paper}, loc).RunRangeBreach(context.Background(), "BTCUSD", day, day)
	if err != nil {
		t.Fatalf("RunRangeBreach() error = %v", err)
	}
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("results = %+v", results)
	}
	if results[0].High != 120 || results[0].Low != 95 {
		t.Errorf("range = %v/%v, want 120/95 from the four range bars", results[0].High, results[0].Low)
	}
	if got := results[0].String(); got != "2024-03-05: High breached at 121.5" {
		t.Errorf("result = %q", got)
	}
}

func TestEngineRunPsychLevelUsesInstrumentPip(t *testing.T) {
	loc := newYork(t)
	paper := broker.NewPaperTerminal(nil)
	// 150.158 sits near the 150.00 level on a JPY pair; sell at 150.15, target 149.65
	paper.SetCandles("USDJPY", series(time.Date(2024, 3, 5, 8, 0, 0, 0, loc), time.Minute,
		[4]float64{150.158, 150.20, 150.10, 150.18},
		[4]float64{150.00, 150.05, 149.60, 149.62},
	))

	day := time.Date(2024, 3, 5, 0, 0, 0, 0, loc)
	jpy := types.Instrument{Symbol: "USDJPY", AssetClass: types.AssetForex, PipSize: 0.01, Point: 0.001, ContractSize: 100000}
	report, err := testEngine(paper, loc).RunPsychLevel(context.Background(), "USDJPY", day, day, jpy)
	if err != nil {
		t.Fatalf("RunPsychLevel() error = %v", err)
	}
	if len(report.Trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(report.Trades))
	}
	trade := report.Trades[0]
	if trade.Direction != types.DirectionSell || trade.Outcome != types.OutcomeWin {
		t.Errorf("trade = %+v", trade)
	}
	if math.Abs(trade.Entry-150.15) > 1e-9 || math.Abs(trade.StopLoss-150.25) > 1e-9 || math.Abs(trade.TakeProfit-149.65) > 1e-9 {
		t.Errorf("levels = %v/%v/%v, want 150.15/150.25/149.65", trade.Entry, trade.StopLoss, trade.TakeProfit)
	}

	if _, err := testEngine(paper, loc).RunPsychLevel(context.Background(), "GBPJPY", day, day, jpy); err == nil {
		t.Error("expected error for a symbol with no candles")
	}
}

func TestEngineContextCancelled(t *testing.T) {
	loc := newYork(t)
	paper := broker.NewPaperTerminal(nil)
	paper.SetCandles("EURUSD", series(time.Date(2024, 3, 5, 9, 25, 0, 0, loc), 5*time.Minute,
		[4]float64{1.1010, 1.1015, 1.0995, 1.1000}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	day := time.Date(2024, 3, 5, 0, 0, 0, 0, loc)
	if _, err := testEngine(paper, loc).Run(ctx, "EURUSD", day, day); err == nil {
		t.Error("expected context error")
	}
}
