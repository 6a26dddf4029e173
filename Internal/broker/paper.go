package broker

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fazecat/mogulfx/Internal/types"
)

// PaperTerminal is an in-memory terminal for dry runs and tests. History
// comes from seeded candles, or from Feed when one is set.
type PaperTerminal struct {
	Feed HistoryFeed
	Now  func() time.Time

	mu        sync.RWMutex
	candles   map[string][]types.Candle
	ticks     map[string][]types.Tick
	quotes    map[string]types.Tick
	orders    map[string]Order
	positions map[string]Position
	closed    bool
}

func NewPaperTerminal(feed HistoryFeed) *PaperTerminal {
	return &PaperTerminal{
		Feed:      feed,
		Now:       time.Now,
		candles:   make(map[string][]types.Candle),
		ticks:     make(map[string][]types.Tick),
		quotes:    make(map[string]types.Tick),
		orders:    make(map[string]Order),
		positions: make(map[string]Position),
	}
}

func (p *PaperTerminal) SetCandles(symbol string, candles []types.Candle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candles[symbol] = append([]types.Candle(nil), candles...)
}

func (p *PaperTerminal) SetTicks(symbol string, ticks []types.Tick) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticks[symbol] = append([]types.Tick(nil), ticks...)
}

func (p *PaperTerminal) SetQuote(symbol string, bid, ask float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[symbol] = types.Tick{Time: p.Now(), Bid: bid, Ask: ask}
}

func (p *PaperTerminal) AddPosition(pos Position) Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pos.Ticket == "" {
		pos.Ticket = uuid.NewString()
	}
	p.positions[pos.Ticket] = pos
	return pos
}

func (p *PaperTerminal) Candles(ctx context.Context, symbol string, tf Timeframe, from, to time.Time) ([]types.Candle, error) {
	if p.Feed != nil {
		return p.Feed.Candles(ctx, symbol, tf, from, to)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	all, ok := p.candles[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, ErrUnknownSymbol)
	}
	var out []types.Candle
	for _, c := range all {
		if !c.Time.Before(from) && c.Time.Before(to) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s %s: %w", symbol, tf, ErrNoData)
	}
	return out, nil
}

func (p *PaperTerminal) RecentCandles(ctx context.Context, symbol string, tf Timeframe, count int) ([]types.Candle, error) {
	if p.Feed != nil {
		now := p.Now()
		candles, err := p.Feed.Candles(ctx, symbol, tf, now.Add(-tf.Duration()*time.Duration(count+2)), now)
		if err != nil {
			return nil, err
		}
		if len(candles) > count {
			candles = candles[len(candles)-count:]
		}
		return candles, nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	all, ok := p.candles[symbol]
	if !ok || len(all) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}
	if len(all) > count {
		all = all[len(all)-count:]
	}
	return append([]types.Candle(nil), all...), nil
}

func (p *PaperTerminal) Ticks(ctx context.Context, symbol string, from, to time.Time) ([]types.Tick, error) {
	if p.Feed != nil {
		return p.Feed.Ticks(ctx, symbol, from, to)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []types.Tick
	for _, t := range p.ticks[symbol] {
		if !t.Time.Before(from) && t.Time.Before(to) {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s ticks: %w", symbol, ErrNoData)
	}
	return out, nil
}

func (p *PaperTerminal) Quote(ctx context.Context, symbol string) (types.Tick, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	q, ok := p.quotes[symbol]
	if !ok {
		return types.Tick{}, fmt.Errorf("%s quote: %w", symbol, ErrNoData)
	}
	return q, nil
}

func (p *PaperTerminal) PlaceLimitOrder(ctx context.Context, req OrderRequest) (Order, error) {
	if req.Lots <= 0 || req.Price <= 0 {
		return Order{}, fmt.Errorf("invalid order: lots %.2f price %.5f", req.Lots, req.Price)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return Order{}, fmt.Errorf("terminal closed")
	}

	order := Order{
		ID:            uuid.NewString(),
		ClientOrderID: uuid.NewString(),
		Symbol:        req.Symbol,
		Direction:     req.Direction,
		Lots:          req.Lots,
		Price:         req.Price,
		StopLoss:      req.StopLoss,
		TakeProfit:    req.TakeProfit,
		Status:        "new",
		CreatedAt:     p.Now(),
	}
	p.orders[order.ID] = order
	log.Printf("📝 [paper] %s %s %.2f lots @ %.5f (ID: %s)\n", req.Direction, req.Symbol, req.Lots, req.Price, order.ID)
	return order, nil
}

func (p *PaperTerminal) CancelOrder(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.orders[orderID]; !ok {
		return fmt.Errorf("cancel %s: %w", orderID, ErrOrderNotFound)
	}
	delete(p.orders, orderID)
	return nil
}

// Fill turns a pending order into an open position.
func (p *PaperTerminal) Fill(orderID string) (Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	order, ok := p.orders[orderID]
	if !ok {
		return Position{}, fmt.Errorf("fill %s: %w", orderID, ErrOrderNotFound)
	}
	delete(p.orders, orderID)

	pos := Position{
		Ticket:     order.ID,
		Symbol:     order.Symbol,
		Direction:  order.Direction,
		Lots:       order.Lots,
		EntryPrice: order.Price,
		StopLoss:   order.StopLoss,
		TakeProfit: order.TakeProfit,
	}
	p.positions[pos.Ticket] = pos
	return pos, nil
}

func (p *PaperTerminal) PendingOrders(ctx context.Context, symbol string) ([]Order, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Order
	for _, o := range p.orders {
		if symbol == "" || o.Symbol == symbol {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (p *PaperTerminal) Positions(ctx context.Context) ([]Position, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out, nil
}

func (p *PaperTerminal) SetProtection(ctx context.Context, position Position, stopLoss, takeProfit float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[position.Ticket]
	if !ok {
		return fmt.Errorf("position %s not found", position.Ticket)
	}
	pos.StopLoss = stopLoss
	pos.TakeProfit = takeProfit
	p.positions[position.Ticket] = pos
	return nil
}

func (p *PaperTerminal) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
