package monitoring

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fazecat/mogulfx/Internal/broker"
	"github.com/fazecat/mogulfx/Internal/notifications"
	"github.com/fazecat/mogulfx/Internal/types"
)

func placeOrder(t *testing.T, paper *broker.PaperTerminal) broker.Order {
	t.Helper()
	order, err := paper.PlaceLimitOrder(context.Background(), broker.OrderRequest{
		Symbol:    "EURUSD",
		Direction: types.DirectionBuy,
		Lots:      0.5,
		Price:     1.1015,
		StopLoss:  1.0995,
	})
	if err != nil {
		t.Fatalf("PlaceLimitOrder() error = %v", err)
	}
	return order
}

func TestWatchOrderFilled(t *testing.T) {
	paper := broker.NewPaperTerminal(nil)
	order := placeOrder(t, paper)
	if _, err := paper.Fill(order.ID); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := WatchOrder(ctx, paper, order, time.Now().Add(time.Hour), time.Millisecond)
	if err != nil {
		t.Fatalf("WatchOrder() error = %v", err)
	}
	if res.Status != StatusFilled {
		t.Errorf("Status = %s, want filled", res.Status)
	}
}

func TestWatchOrderExpired(t *testing.T) {
	paper := broker.NewPaperTerminal(nil)
	order := placeOrder(t, paper)

	w := NewWatcher(paper, time.Millisecond)
	expiry := time.Date(2024, 3, 5, 15, 25, 0, 0, time.UTC)
	w.Now = func() time.Time { return expiry }

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := w.Watch(ctx, order, expiry)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if res.Status != StatusExpired {
		t.Errorf("Status = %s, want expired", res.Status)
	}
	pending, _ := paper.PendingOrders(ctx, "EURUSD")
	if len(pending) != 0 {
		t.Errorf("expired order still pending: %+v", pending)
	}
}

func TestWatchChecksBeforeFirstInterval(t *testing.T) {
	paper := broker.NewPaperTerminal(nil)
	order := placeOrder(t, paper)
	if _, err := paper.Fill(order.ID); err != nil {
		t.Fatal(err)
	}

	// an hour-long interval would time out here if the first check waited for it
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := WatchOrder(ctx, paper, order, time.Now().Add(time.Hour), time.Hour)
	if err != nil {
		t.Fatalf("WatchOrder() error = %v", err)
	}
	if res.Status != StatusFilled {
		t.Errorf("Status = %s, want filled", res.Status)
	}
}

func TestWatchOrderCancelledContext(t *testing.T) {
	paper := broker.NewPaperTerminal(nil)
	order := placeOrder(t, paper)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := WatchOrder(ctx, paper, order, time.Now().Add(time.Hour), time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestHistoryStats(t *testing.T) {
	var h History
	at := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	h.Record(WatchResult{Status: StatusFilled, At: at})
	h.Record(WatchResult{Status: StatusExpired, At: at.Add(time.Hour)})
	h.Record(WatchResult{Status: StatusFilled, At: at.Add(2 * time.Hour)})
	h.Record(WatchResult{Status: StatusExpired, At: at.Add(30 * time.Minute)})

	s := h.Stats()
	if s.Total != 4 || s.Filled != 2 || s.Expired != 2 || s.FillRate != 50 {
		t.Errorf("stats = %+v", s)
	}
	if !s.LastEvent.Equal(at.Add(2 * time.Hour)) {
		t.Errorf("LastEvent = %v", s.LastEvent)
	}
	if got := h.Recent(2); len(got) != 2 || got[1].Status != StatusExpired {
		t.Errorf("Recent(2) = %+v", got)
	}
}

type captured struct{ msgs []notifications.Message }

func (c *captured) Notify(ctx context.Context, msg notifications.Message) error {
	c.msgs = append(c.msgs, msg)
	return nil
}

func hourly(lows, highs []float64) []types.Candle {
	start := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	candles := make([]types.Candle, len(lows))
	for i := range lows {
		candles[i] = types.Candle{Time: start.Add(time.Duration(i) * time.Hour), Low: lows[i], High: highs[i]}
	}
	return candles
}

func TestGuardCheck(t *testing.T) {
	paper := broker.NewPaperTerminal(nil)
	paper.SetCandles("EURUSD", hourly([]float64{1.0990, 1.0980, 1.1000}, []float64{1.1020, 1.1030, 1.1025}))
	paper.SetCandles("GBPUSD", hourly([]float64{1.2600}, []float64{1.2700}))

	unprotected := paper.AddPosition(broker.Position{Ticket: "a", Symbol: "EURUSD", Direction: types.DirectionBuy, EntryPrice: 1.1010})
	paper.AddPosition(broker.Position{Ticket: "b", Symbol: "EURUSD", Direction: types.DirectionSell, EntryPrice: 1.1010, StopLoss: 1.1030, TakeProfit: 1.0950})
	// stop would sit above a buy entry: skipped
	paper.AddPosition(broker.Position{Ticket: "c", Symbol: "GBPUSD", Direction: types.DirectionBuy, EntryPrice: 1.2500})

	note := &captured{}
	g := NewGuard(paper, note)

	set, err := g.Check(context.Background())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if set != 1 {
		t.Fatalf("protected %d positions, want 1", set)
	}

	positions, _ := paper.Positions(context.Background())
	for _, p := range positions {
		if p.Ticket != unprotected.Ticket {
			continue
		}
		// risk 0.003, TP = entry + 3R
		if p.StopLoss != 1.098 || p.TakeProfit != 1.1100 {
			t.Errorf("protection = %v/%v, want 1.098/1.11", p.StopLoss, p.TakeProfit)
		}
	}
	if len(note.msgs) != 1 || note.msgs[0].Symbol != "EURUSD" {
		t.Errorf("notifications = %+v", note.msgs)
	}

	// handled tickets are not touched again
	if set, _ := g.Check(context.Background()); set != 0 {
		t.Errorf("second pass protected %d positions", set)
	}
}

type unreachable struct{}

func (unreachable) Notify(ctx context.Context, msg notifications.Message) error {
	return errors.New("telegram: connection refused")
}

func TestGuardLogsNotifyFailure(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	paper := broker.NewPaperTerminal(nil)
	paper.SetCandles("EURUSD", hourly([]float64{1.0990, 1.0980, 1.1000}, []float64{1.1020, 1.1030, 1.1025}))
	paper.AddPosition(broker.Position{Ticket: "a", Symbol: "EURUSD", Direction: types.DirectionBuy, EntryPrice: 1.1010})

	set, err := NewGuard(paper, unreachable{}).Check(context.Background())
	if err != nil || set != 1 {
		t.Fatalf("Check() = %d, %v, want 1 protected", set, err)
	}
	if !strings.Contains(buf.String(), "connection refused") {
		t.Errorf("notify failure not logged: %q", buf.String())
	}
}
