package monitoring

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fazecat/mogulfx/Internal/broker"
	"github.com/fazecat/mogulfx/Internal/notifications"
	"github.com/fazecat/mogulfx/Internal/strategy"
	"github.com/fazecat/mogulfx/Internal/types"
)

// GuardTerminal is the part of a terminal the protection guard needs.
type GuardTerminal interface {
	Positions(ctx context.Context) ([]broker.Position, error)
	RecentCandles(ctx context.Context, symbol string, tf broker.Timeframe, count int) ([]types.Candle, error)
	SetProtection(ctx context.Context, position broker.Position, stopLoss, takeProfit float64) error
}

// Guard puts SL/TP on positions that were opened without them.
type Guard struct {
	Terminal       GuardTerminal
	Notifier       notifications.Notifier
	Timeframe      broker.Timeframe
	Lookback       int
	RewardMultiple float64
	Precision      int32
	Interval       time.Duration

	mu      sync.Mutex
	handled map[string]bool
}

func NewGuard(terminal GuardTerminal, notifier notifications.Notifier) *Guard {
	return &Guard{
		Terminal:       terminal,
		Notifier:       notifier,
		Timeframe:      types.Timeframe1Hour,
		Lookback:       24,
		RewardMultiple: 3,
		Precision:      5,
		Interval:       time.Minute,
		handled:        make(map[string]bool),
	}
}

// Check runs a single pass and returns how many positions were protected.
func (g *Guard) Check(ctx context.Context) (int, error) {
	positions, err := g.Terminal.Positions(ctx)
	if err != nil {
		return 0, fmt.Errorf("positions: %w", err)
	}

	set := 0
	for _, pos := range positions {
		if pos.Protected() || g.isHandled(pos.Ticket) {
			continue
		}
		candles, err := g.Terminal.RecentCandles(ctx, pos.Symbol, g.Timeframe, g.Lookback)
		if err != nil {
			log.Printf("⚠️  guard %s: %v\n", pos.Symbol, err)
			continue
		}
		sl, tp, ok := strategy.ProtectionLevels(pos.Direction, pos.EntryPrice, candles, g.RewardMultiple, g.Precision)
		if !ok {
			log.Printf("⚠️  guard %s: no valid stop from %d candles\n", pos.Symbol, len(candles))
			continue
		}
		if err := g.Terminal.SetProtection(ctx, pos, sl, tp); err != nil {
			log.Printf("❌ guard %s: set SL/TP: %v\n", pos.Symbol, err)
			continue
		}

		g.markHandled(pos.Ticket)
		set++
		log.Printf("🛡️  %s %s protected: SL %g TP %g\n", pos.Symbol, pos.Direction.Label(), sl, tp)
		g.notify(ctx, notifications.Message{
			Level:  notifications.LevelInfo,
			Title:  "Protection set",
			Body:   fmt.Sprintf("%s entry %g: SL %g TP %g", pos.Direction.Label(), pos.EntryPrice, sl, tp),
			Symbol: pos.Symbol,
		})
	}
	return set, nil
}

func (g *Guard) notify(ctx context.Context, msg notifications.Message) {
	if g.Notifier == nil {
		return
	}
	if err := g.Notifier.Notify(ctx, msg); err != nil {
		log.Printf("⚠️  notify: %v\n", err)
	}
}

// Run checks every Interval until ctx is cancelled.
func (g *Guard) Run(ctx context.Context) error {
	log.Println("🟢 Protection guard started")
	defer log.Println("🔴 Protection guard stopped")

	ticker := time.NewTicker(g.Interval)
	defer ticker.Stop()
	for {
		if _, err := g.Check(ctx); err != nil {
			log.Printf("⚠️  guard: %v\n", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (g *Guard) isHandled(ticket string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.handled[ticket]
}

func (g *Guard) markHandled(ticket string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.handled == nil {
		g.handled = make(map[string]bool)
	}
	g.handled[ticket] = true
}
