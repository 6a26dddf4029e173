package risk

import (
	"errors"
	"testing"
	"time"

	"github.com/fazecat/mogulfx/Internal/strategy"
	"github.com/fazecat/mogulfx/Internal/types"
	"github.com/fazecat/mogulfx/Internal/utils/config"
)

func newTestManager() *Manager {
	rm := NewManager(config.RiskConfig{
		RiskAmountUSD: 150,
		MinLot:        0.01,
		MaxLot:        100,
		LotPrecision:  2,
		MaxOpenOrders: 2,
		MaxDailyLossR: 2,
	})
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	rm.Now = func() time.Time { return now }
	return rm
}

func TestSizeOrder(t *testing.T) {
	rm := newTestManager()
	inst := config.InferInstrument("EURUSD")

	lots, err := rm.SizeOrder(inst, 1.1015, 1.0995, 0)
	if err != nil {
		t.Fatalf("SizeOrder() error = %v", err)
	}
	if lots != 0.75 {
		t.Errorf("lots = %v, want 0.75", lots)
	}

	if _, err := rm.SizeOrder(inst, 1.1, 1.1, 0); !errors.Is(err, strategy.ErrZeroStopDistance) {
		t.Errorf("expected ErrZeroStopDistance, got %v", err)
	}
	if events := rm.GetRiskEvents(0); len(events) != 1 || events[0].EventType != "LOT_SIZE_REJECTED" {
		t.Errorf("events = %+v", events)
	}
}

func TestCanPlaceOrderMaxOpen(t *testing.T) {
	rm := newTestManager()
	rm.RecordOrderPlaced("EURUSD")
	if !rm.CanPlaceOrder("GBPUSD").Valid {
		t.Fatal("one open order should be allowed")
	}

	rm.RecordOrderPlaced("GBPUSD")
	if res := rm.CanPlaceOrder("USDJPY"); res.Valid {
		t.Error("expected max open orders to block")
	}

	rm.RecordOrderCancelled("GBPUSD")
	if !rm.CanPlaceOrder("USDJPY").Valid {
		t.Error("cancelled order should free a slot")
	}
}

func TestDailyLossLimit(t *testing.T) {
	rm := newTestManager()
	alerts := make(chan *Alert, 1)
	rm.RegisterAlertCallback(func(a *Alert) { alerts <- a })

	rm.RecordOrderPlaced("EURUSD")
	rm.LogTradeResult("EURUSD", types.OutcomeWin)
	rm.LogTradeResult("EURUSD", types.OutcomeLoss)
	if rm.IsDailyLossLimitHit() {
		t.Fatal("limit hit after one loss")
	}
	rm.LogTradeResult("GBPUSD", types.OutcomeLoss)

	if !rm.IsDailyLossLimitHit() {
		t.Fatal("expected limit hit after two losses")
	}
	if rm.CanPlaceOrder("EURUSD").Valid {
		t.Error("orders should be blocked once the limit is hit")
	}
	if rm.CountOpenOrders() != 0 {
		t.Errorf("open orders = %d, want 0", rm.CountOpenOrders())
	}

	select {
	case a := <-alerts:
		if a.Level != "CRITICAL" || a.Symbol != "GBPUSD" {
			t.Errorf("alert = %+v", a)
		}
	case <-time.After(time.Second):
		t.Fatal("no alert delivered")
	}

	report := rm.GenerateRiskReport()
	if report.HealthStatus != "CRITICAL - DAILY LOSS LIMIT HIT" {
		t.Errorf("HealthStatus = %q", report.HealthStatus)
	}
}

func TestDailyLossResetsNextDay(t *testing.T) {
	rm := newTestManager()
	rm.LogTradeResult("EURUSD", types.OutcomeLoss)
	rm.LogTradeResult("EURUSD", types.OutcomeLoss)

	next := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	rm.Now = func() time.Time { return next }

	if got := rm.GetDailyLossR(); got != 0 {
		t.Errorf("daily loss after rollover = %v, want 0", got)
	}
}

func TestSyncOpen(t *testing.T) {
	rm := newTestManager()
	rm.RecordOrderPlaced("EURUSD")
	rm.SyncOpen(map[string]int{"GBPUSD": 1, "USDJPY": 1})

	if got := rm.CountOpenOrders(); got != 2 {
		t.Errorf("CountOpenOrders() = %d, want 2", got)
	}
	if rm.CanPlaceOrder("EURUSD").Valid {
		t.Error("synced counts should hit the cap")
	}
}
