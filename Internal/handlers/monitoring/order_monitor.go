package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fazecat/mogulfx/Internal/broker"
)

type OrderStatus string

const (
	StatusFilled    OrderStatus = "filled"
	StatusExpired   OrderStatus = "expired"
	StatusCancelled OrderStatus = "cancelled"
)

// OrderTerminal is the part of a terminal the order watcher needs.
type OrderTerminal interface {
	PendingOrders(ctx context.Context, symbol string) ([]broker.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
}

type WatchResult struct {
	Order  broker.Order
	Status OrderStatus
	At     time.Time
}

// Watcher polls a pending order until it fills or expires.
type Watcher struct {
	Terminal OrderTerminal
	Interval time.Duration
	Now      func() time.Time
}

func NewWatcher(terminal OrderTerminal, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Watcher{Terminal: terminal, Interval: interval, Now: time.Now}
}

// WatchOrder polls every interval until the order leaves the pending list
// (filled) or expiry passes (cancelled and reported expired).
func WatchOrder(ctx context.Context, terminal OrderTerminal, order broker.Order, expiry time.Time, interval time.Duration) (WatchResult, error) {
	return NewWatcher(terminal, interval).Watch(ctx, order, expiry)
}

// Watch checks the order straight away, then once per Interval.
func (w *Watcher) Watch(ctx context.Context, order broker.Order, expiry time.Time) (WatchResult, error) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		result, done, err := w.check(ctx, order, expiry)
		if err != nil {
			log.Printf("⚠️  order %s: %v\n", order.ID, err)
		} else if done {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return WatchResult{Order: order}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Watcher) check(ctx context.Context, order broker.Order, expiry time.Time) (WatchResult, bool, error) {
	pending, err := w.Terminal.PendingOrders(ctx, order.Symbol)
	if err != nil {
		return WatchResult{}, false, fmt.Errorf("pending orders: %w", err)
	}

	now := w.Now()
	if !containsOrder(pending, order.ID) {
		log.Printf("✅ Order %s for %s filled\n", order.ID, order.Symbol)
		return WatchResult{Order: order, Status: StatusFilled, At: now}, true, nil
	}
	if now.Before(expiry) {
		return WatchResult{}, false, nil
	}

	err = w.Terminal.CancelOrder(ctx, order.ID)
	if errors.Is(err, broker.ErrOrderNotFound) {
		// filled between the two calls
		return WatchResult{Order: order, Status: StatusFilled, At: now}, true, nil
	}
	if err != nil {
		return WatchResult{}, false, fmt.Errorf("cancel: %w", err)
	}
	log.Printf("⌛ Order %s for %s expired and was cancelled\n", order.ID, order.Symbol)
	return WatchResult{Order: order, Status: StatusExpired, At: now}, true, nil
}

func containsOrder(orders []broker.Order, id string) bool {
	for _, o := range orders {
		if o.ID == id {
			return true
		}
	}
	return false
}
