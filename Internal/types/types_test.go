package types

import (
	"testing"
	"time"
)

func TestTimeframeDuration(t *testing.T) {
	tests := []struct {
		tf   Timeframe
		want time.Duration
	}{
		{Timeframe1Min, time.Minute},
		{Timeframe5Min, 5 * time.Minute},
		{Timeframe1Hour, time.Hour},
		{Timeframe1Day, 24 * time.Hour},
		{"7Min", 0},
	}
	for _, tt := range tests {
		if got := tt.tf.Duration(); got != tt.want {
			t.Errorf("%s.Duration() = %s, want %s", tt.tf, got, tt.want)
		}
	}
	if Timeframe("bogus").Valid() {
		t.Error("bogus timeframe should be invalid")
	}
}

func TestDirectionAndOutcome(t *testing.T) {
	if DirectionBuy.Label() != "Buy" || DirectionSell.Label() != "Sell" || Direction("").Label() != "No trade" {
		t.Error("unexpected direction labels")
	}
	if DirectionBuy.Opposite() != DirectionSell || DirectionSell.Opposite() != DirectionBuy {
		t.Error("Opposite() mismatch")
	}
	if !OutcomeWin.Closed() || !OutcomeLoss.Closed() || OutcomeOpen.Closed() || OutcomePending.Closed() {
		t.Error("Closed() mismatch")
	}
}

func TestInstrumentTicker(t *testing.T) {
	if got := (Instrument{Symbol: "BTCUSD", BrokerSymbol: "BTC/USD"}).Ticker(); got != "BTC/USD" {
		t.Errorf("Ticker() = %s", got)
	}
	if got := (Instrument{Symbol: "SPY"}).Ticker(); got != "SPY" {
		t.Errorf("Ticker() = %s", got)
	}
}
