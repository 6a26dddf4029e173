package broker

import (
	"context"
	"errors"
	"math"
	"time"

	datafeed "github.com/fazecat/mogulfx/Internal/database"
	"github.com/fazecat/mogulfx/Internal/types"
)

type Timeframe = types.Timeframe

var (
	ErrNoData        = datafeed.ErrNoData
	ErrUnknownSymbol = datafeed.ErrUnknownSymbol
	ErrOrderNotFound = errors.New("order not found")
)

// CandlesBefore trims a candle slice to the half-open range a feed promises.
var CandlesBefore = datafeed.CandlesBefore

// HistoryFeed serves candle and tick history over the half-open range
// [from, to).
type HistoryFeed interface {
	Candles(ctx context.Context, symbol string, tf Timeframe, from, to time.Time) ([]types.Candle, error)
	Ticks(ctx context.Context, symbol string, from, to time.Time) ([]types.Tick, error)
}

// Terminal is a connected trading account.
type Terminal interface {
	HistoryFeed
	RecentCandles(ctx context.Context, symbol string, tf Timeframe, count int) ([]types.Candle, error)
	Quote(ctx context.Context, symbol string) (types.Tick, error)
	PlaceLimitOrder(ctx context.Context, req OrderRequest) (Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	PendingOrders(ctx context.Context, symbol string) ([]Order, error)
	Positions(ctx context.Context) ([]Position, error)
	SetProtection(ctx context.Context, position Position, stopLoss, takeProfit float64) error
	Close() error
}

type OrderRequest struct {
	Symbol     string
	Direction  types.Direction
	Lots       float64
	Price      float64
	StopLoss   float64
	TakeProfit float64
	Expiry     time.Time
	Comment    string
	Magic      int
}

// RequestFromSignal builds a pending limit order at the signal level.
func RequestFromSignal(signal types.TradeSignal, comment string, magic int) OrderRequest {
	return OrderRequest{
		Symbol:     signal.Symbol,
		Direction:  signal.Direction,
		Lots:       signal.LotSize,
		Price:      signal.Level,
		StopLoss:   signal.StopLoss,
		TakeProfit: signal.TakeProfit,
		Expiry:     signal.ExpiresAt,
		Comment:    comment,
		Magic:      magic,
	}
}

type Order struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Direction     types.Direction
	Lots          float64
	Price         float64
	StopLoss      float64
	TakeProfit    float64
	Status        string
	CreatedAt     time.Time
}

type Position struct {
	Ticket     string
	Symbol     string
	Direction  types.Direction
	Lots       float64
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
}

// Protected reports whether both exits are set.
func (p Position) Protected() bool {
	return p.StopLoss != 0 && p.TakeProfit != 0
}

// FindOrder returns the first order for the same symbol, side and price.
func FindOrder(orders []Order, symbol string, direction types.Direction, price float64) (Order, bool) {
	for _, o := range orders {
		if o.Symbol == symbol && o.Direction == direction && math.Abs(o.Price-price) < 1e-9 {
			return o, true
		}
	}
	return Order{}, false
}

func HasOrder(orders []Order, symbol string, direction types.Direction, price float64) bool {
	_, ok := FindOrder(orders, symbol, direction, price)
	return ok
}

var (
	_ Terminal    = (*PaperTerminal)(nil)
	_ Terminal    = (*AlpacaTerminal)(nil)
	_ HistoryFeed = (*datafeed.CSVFeed)(nil)
)
