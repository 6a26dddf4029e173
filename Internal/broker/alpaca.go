package broker

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	datafeed "github.com/fazecat/mogulfx/Internal/database"
	"github.com/fazecat/mogulfx/Internal/types"
	"github.com/fazecat/mogulfx/Internal/utils"
)

const DefaultBaseURL = "https://paper-api.alpaca.markets"

// AlpacaTerminal trades through the Alpaca REST API. Market data comes from
// the embedded feed.
type AlpacaTerminal struct {
	*datafeed.AlpacaFeed
	client  *alpaca.Client
	resolve datafeed.Resolver
	retry   utils.RetryConfig
}

type AlpacaOptions struct {
	APIKey    string
	APISecret string
	BaseURL   string
	DataFeed  string
	Resolve   datafeed.Resolver
}

func NewAlpacaTerminal(opts AlpacaOptions) (*AlpacaTerminal, error) {
	if opts.APIKey == "" || opts.APISecret == "" {
		return nil, fmt.Errorf("ALPACA_API_KEY or ALPACA_API_SECRET not set")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	return &AlpacaTerminal{
		AlpacaFeed: datafeed.NewAlpacaFeed(opts.APIKey, opts.APISecret, opts.DataFeed, opts.Resolve),
		client: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    opts.APIKey,
			APISecret: opts.APISecret,
			BaseURL:   opts.BaseURL,
		}),
		resolve: opts.Resolve,
		retry:   utils.DefaultRetryConfig(),
	}, nil
}

func NewAlpacaTerminalFromEnv(baseURL, dataFeed string, resolve datafeed.Resolver) (*AlpacaTerminal, error) {
	return NewAlpacaTerminal(AlpacaOptions{
		APIKey:    os.Getenv("ALPACA_API_KEY"),
		APISecret: os.Getenv("ALPACA_API_SECRET"),
		BaseURL:   baseURL,
		DataFeed:  dataFeed,
		Resolve:   resolve,
	})
}

func (t *AlpacaTerminal) instrument(symbol string) types.Instrument {
	if t.resolve != nil {
		if inst, ok := t.resolve(symbol); ok {
			return inst
		}
	}
	return types.Instrument{Symbol: symbol, AssetClass: types.AssetStock, ContractSize: 1}
}

// BuildPlaceOrderRequest converts a pending order into an Alpaca bracket
// limit order. Lots are scaled by the contract size into units.
func BuildPlaceOrderRequest(req OrderRequest, inst types.Instrument) (*alpaca.PlaceOrderRequest, error) {
	if req.Lots <= 0 {
		return nil, fmt.Errorf("invalid lot size: %v", req.Lots)
	}
	if req.Price <= 0 {
		return nil, fmt.Errorf("invalid limit price: %v", req.Price)
	}

	var side alpaca.Side
	switch req.Direction {
	case types.DirectionBuy:
		side = alpaca.Buy
	case types.DirectionSell:
		side = alpaca.Sell
	default:
		return nil, fmt.Errorf("invalid direction: %s (must be buy or sell)", req.Direction)
	}

	qty := lotsToUnits(req.Lots, inst)
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%.2f lots is below one unit of %s", req.Lots, inst.Symbol)
	}
	limitPrice := decimal.NewFromFloat(req.Price)

	tif := alpaca.GTC
	if inst.AssetClass == types.AssetStock {
		tif = alpaca.Day
	}

	placeOrderReq := &alpaca.PlaceOrderRequest{
		Symbol:        inst.Ticker(),
		Qty:           &qty,
		Side:          side,
		Type:          alpaca.Limit,
		TimeInForce:   tif,
		LimitPrice:    &limitPrice,
		ClientOrderID: uuid.NewString(),
	}

	if req.StopLoss > 0 && req.TakeProfit > 0 {
		tp := decimal.NewFromFloat(req.TakeProfit)
		sl := decimal.NewFromFloat(req.StopLoss)
		placeOrderReq.OrderClass = alpaca.Bracket
		placeOrderReq.TakeProfit = &alpaca.TakeProfit{LimitPrice: &tp}
		placeOrderReq.StopLoss = &alpaca.StopLoss{StopPrice: &sl}
	}

	return placeOrderReq, nil
}

func contractSize(inst types.Instrument) decimal.Decimal {
	if inst.ContractSize <= 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromFloat(inst.ContractSize)
}

// lotsToUnits scales lots into the unit quantity Alpaca trades. Only crypto
// accepts fractional units.
func lotsToUnits(lots float64, inst types.Instrument) decimal.Decimal {
	qty := decimal.NewFromFloat(lots).Mul(contractSize(inst))
	if inst.AssetClass != types.AssetCrypto {
		qty = qty.Floor()
	}
	return qty
}

func unitsToLots(qty decimal.Decimal, inst types.Instrument) float64 {
	return qty.Div(contractSize(inst)).InexactFloat64()
}

func (t *AlpacaTerminal) PlaceLimitOrder(ctx context.Context, req OrderRequest) (Order, error) {
	inst := t.instrument(req.Symbol)
	placeReq, err := BuildPlaceOrderRequest(req, inst)
	if err != nil {
		return Order{}, err
	}

	var placed *alpaca.Order
	err = utils.RetryWithBackoffContext(ctx, func() error {
		placed, err = t.client.PlaceOrder(*placeReq)
		return err
	}, t.retry)
	if err != nil {
		return Order{}, fmt.Errorf("place order for %s: %w", req.Symbol, err)
	}

	log.Printf("📝 Limit order placed: %s %s %s @ %s (ID: %s)\n",
		placed.Side, placed.Symbol, placeReq.Qty.String(), placeReq.LimitPrice.String(), placed.ID)
	order := fromAlpacaOrder(*placed, inst)
	order.Symbol = req.Symbol
	order.Lots = req.Lots
	order.StopLoss = req.StopLoss
	order.TakeProfit = req.TakeProfit
	return order, nil
}

func (t *AlpacaTerminal) CancelOrder(ctx context.Context, orderID string) error {
	err := utils.RetryWithBackoffContext(ctx, func() error {
		err := t.client.CancelOrder(orderID)
		if err != nil && strings.Contains(err.Error(), "404") {
			return utils.Permanent(ErrOrderNotFound)
		}
		return err
	}, t.retry)
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	log.Printf("🛑 Order %s canceled\n", orderID)
	return nil
}

func (t *AlpacaTerminal) PendingOrders(ctx context.Context, symbol string) ([]Order, error) {
	req := alpaca.GetOrdersRequest{Status: "open", Limit: 500}
	if symbol != "" {
		req.Symbols = []string{t.instrument(symbol).Ticker()}
	}

	var raw []alpaca.Order
	err := utils.RetryWithBackoffContext(ctx, func() error {
		var err error
		raw, err = t.client.GetOrders(req)
		return err
	}, t.retry)
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}

	orders := make([]Order, 0, len(raw))
	for _, o := range raw {
		if o.Type != alpaca.Limit {
			continue
		}
		inst := t.instrument(o.Symbol)
		if symbol != "" {
			inst = t.instrument(symbol)
		}
		order := fromAlpacaOrder(o, inst)
		if symbol != "" {
			order.Symbol = symbol
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (t *AlpacaTerminal) Positions(ctx context.Context) ([]Position, error) {
	var raw []alpaca.Position
	err := utils.RetryWithBackoffContext(ctx, func() error {
		var err error
		raw, err = t.client.GetPositions()
		return err
	}, t.retry)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}

	var open []alpaca.Order
	if err := utils.RetryWithBackoffContext(ctx, func() error {
		var err error
		open, err = t.client.GetOrders(alpaca.GetOrdersRequest{Status: "open", Limit: 500, Nested: true})
		return err
	}, t.retry); err != nil {
		return nil, fmt.Errorf("list protective orders: %w", err)
	}

	positions := make([]Position, 0, len(raw))
	for _, p := range raw {
		direction := types.DirectionBuy
		if p.Side == "short" {
			direction = types.DirectionSell
		}
		pos := Position{
			Ticket:     p.AssetID,
			Symbol:     p.Symbol,
			Direction:  direction,
			Lots:       unitsToLots(p.Qty.Abs(), t.instrument(p.Symbol)),
			EntryPrice: p.AvgEntryPrice.InexactFloat64(),
		}
		pos.StopLoss, pos.TakeProfit = protectionFor(p.Symbol, direction, open)
		positions = append(positions, pos)
	}
	return positions, nil
}

// protectionFor finds resting exit orders on the closing side.
func protectionFor(symbol string, direction types.Direction, orders []alpaca.Order) (stopLoss, takeProfit float64) {
	closing := alpaca.Sell
	if direction == types.DirectionSell {
		closing = alpaca.Buy
	}
	var scan func([]alpaca.Order)
	scan = func(list []alpaca.Order) {
		for _, o := range list {
			if o.Symbol == symbol && o.Side == closing {
				if o.StopPrice != nil && stopLoss == 0 {
					stopLoss = o.StopPrice.InexactFloat64()
				}
				if o.Type == alpaca.Limit && o.LimitPrice != nil && takeProfit == 0 {
					takeProfit = o.LimitPrice.InexactFloat64()
				}
			}
			if len(o.Legs) > 0 {
				scan(o.Legs)
			}
		}
	}
	scan(orders)
	return stopLoss, takeProfit
}

// SetProtection attaches SL/TP to an open position with an OCO order.
func (t *AlpacaTerminal) SetProtection(ctx context.Context, position Position, stopLoss, takeProfit float64) error {
	qty := lotsToUnits(position.Lots, t.instrument(position.Symbol))
	tp := decimal.NewFromFloat(takeProfit)
	sl := decimal.NewFromFloat(stopLoss)

	side := alpaca.Sell
	if position.Direction == types.DirectionSell {
		side = alpaca.Buy
	}

	req := alpaca.PlaceOrderRequest{
		Symbol:        position.Symbol,
		Qty:           &qty,
		Side:          side,
		Type:          alpaca.Limit,
		TimeInForce:   alpaca.GTC,
		LimitPrice:    &tp,
		OrderClass:    alpaca.OCO,
		TakeProfit:    &alpaca.TakeProfit{LimitPrice: &tp},
		StopLoss:      &alpaca.StopLoss{StopPrice: &sl},
		ClientOrderID: uuid.NewString(),
	}

	err := utils.RetryWithBackoffContext(ctx, func() error {
		_, err := t.client.PlaceOrder(req)
		return err
	}, t.retry)
	if err != nil {
		return fmt.Errorf("set protection for %s: %w", position.Symbol, err)
	}
	log.Printf("🛡️  Protection set for %s: SL %.5f TP %.5f\n", position.Symbol, stopLoss, takeProfit)
	return nil
}

func (t *AlpacaTerminal) Close() error {
	return nil
}

// fromAlpacaOrder converts an Alpaca order, reporting its quantity in lots.
func fromAlpacaOrder(o alpaca.Order, inst types.Instrument) Order {
	order := Order{
		ID:            o.ID,
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Direction:     types.DirectionBuy,
		Status:        o.Status,
		CreatedAt:     o.CreatedAt,
	}
	if o.Side == alpaca.Sell {
		order.Direction = types.DirectionSell
	}
	if o.Qty != nil {
		order.Lots = unitsToLots(*o.Qty, inst)
	}
	if o.LimitPrice != nil {
		order.Price = o.LimitPrice.InexactFloat64()
	}
	for _, leg := range o.Legs {
		if leg.StopPrice != nil {
			order.StopLoss = leg.StopPrice.InexactFloat64()
		} else if leg.LimitPrice != nil {
			order.TakeProfit = leg.LimitPrice.InexactFloat64()
		}
	}
	return order
}
