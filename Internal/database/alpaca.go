package datafeed

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/fazecat/mogulfx/Internal/types"
	"github.com/fazecat/mogulfx/Internal/utils"
)

// AlpacaFeed reads bars and quotes from the Alpaca market data API.
// Crypto instruments go through the crypto endpoints, everything else is
// treated as a stock.
type AlpacaFeed struct {
	client  *marketdata.Client
	resolve Resolver
	feed    string
	retry   utils.RetryConfig
}

func NewAlpacaFeed(apiKey, apiSecret, feed string, resolve Resolver) *AlpacaFeed {
	return &AlpacaFeed{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
		resolve: resolve,
		feed:    feed,
		retry:   utils.DefaultRetryConfig(),
	}
}

func NewAlpacaFeedFromEnv(feed string, resolve Resolver) (*AlpacaFeed, error) {
	apiKey := os.Getenv("ALPACA_API_KEY")
	secretKey := os.Getenv("ALPACA_API_SECRET")
	if apiKey == "" || secretKey == "" {
		return nil, fmt.Errorf("ALPACA_API_KEY or ALPACA_API_SECRET not set")
	}
	return NewAlpacaFeed(apiKey, secretKey, feed, resolve), nil
}

func (f *AlpacaFeed) instrument(symbol string) types.Instrument {
	if f.resolve != nil {
		if inst, ok := f.resolve(symbol); ok {
			return inst
		}
	}
	return types.Instrument{Symbol: symbol, AssetClass: types.AssetStock}
}

// ToTimeFrame converts "5Min" style notation to the Alpaca type.
func ToTimeFrame(tf types.Timeframe) (marketdata.TimeFrame, error) {
	s := string(tf)
	units := []struct {
		suffix string
		unit   marketdata.TimeFrameUnit
	}{
		{"Min", marketdata.Min},
		{"Hour", marketdata.Hour},
		{"Day", marketdata.Day},
		{"Week", marketdata.Week},
	}
	for _, u := range units {
		if !strings.HasSuffix(s, u.suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(s, u.suffix))
		if err != nil || n <= 0 {
			break
		}
		return marketdata.NewTimeFrame(n, u.unit), nil
	}
	return marketdata.TimeFrame{}, fmt.Errorf("unsupported timeframe %q", tf)
}

func (f *AlpacaFeed) Candles(ctx context.Context, symbol string, tf types.Timeframe, from, to time.Time) ([]types.Candle, error) {
	timeframe, err := ToTimeFrame(tf)
	if err != nil {
		return nil, err
	}
	inst := f.instrument(symbol)

	var candles []types.Candle
	err = utils.RetryWithBackoffContext(ctx, func() error {
		candles = candles[:0]
		if inst.AssetClass == types.AssetCrypto {
			bars, err := f.client.GetCryptoBars(inst.Ticker(), marketdata.GetCryptoBarsRequest{
				TimeFrame: timeframe,
				Start:     from,
				End:       to,
			})
			if err != nil {
				return err
			}
			for _, b := range bars {
				candles = append(candles, types.Candle{
					Time: b.Timestamp, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume,
				})
			}
			return nil
		}

		bars, err := f.client.GetBars(inst.Ticker(), marketdata.GetBarsRequest{
			TimeFrame: timeframe,
			Start:     from,
			End:       to,
			Feed:      f.feed,
		})
		if err != nil {
			return err
		}
		for _, b := range bars {
			candles = append(candles, types.Candle{
				Time: b.Timestamp, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: float64(b.Volume),
			})
		}
		return nil
	}, f.retry)
	if err != nil {
		return nil, fmt.Errorf("fetch %s bars for %s: %w", tf, symbol, err)
	}
	// Alpaca includes the bar stamped at End
	candles = CandlesBefore(candles, to)
	if len(candles) == 0 {
		return nil, fmt.Errorf("%s %s: %w", symbol, tf, ErrNoData)
	}

	fmt.Printf("📊 Received %d bars for %s\n", len(candles), symbol)
	return candles, nil
}

// RecentCandles returns up to count of the latest candles.
func (f *AlpacaFeed) RecentCandles(ctx context.Context, symbol string, tf types.Timeframe, count int) ([]types.Candle, error) {
	now := time.Now().UTC()
	start := now.Add(-tf.Duration() * time.Duration(count+2))
	candles, err := f.Candles(ctx, symbol, tf, start, now)
	if err != nil {
		return nil, err
	}
	if len(candles) > count {
		candles = candles[len(candles)-count:]
	}
	return candles, nil
}

// Ticks returns quotes for stocks. Crypto has no historical quote stream
// on this API, so trades stand in with bid and ask set to the trade price.
func (f *AlpacaFeed) Ticks(ctx context.Context, symbol string, from, to time.Time) ([]types.Tick, error) {
	inst := f.instrument(symbol)

	var ticks []types.Tick
	err := utils.RetryWithBackoffContext(ctx, func() error {
		ticks = ticks[:0]
		if inst.AssetClass == types.AssetCrypto {
			trades, err := f.client.GetCryptoTrades(inst.Ticker(), marketdata.GetCryptoTradesRequest{
				Start: from,
				End:   to,
			})
			if err != nil {
				return err
			}
			for _, tr := range trades {
				ticks = append(ticks, types.Tick{Time: tr.Timestamp, Bid: tr.Price, Ask: tr.Price})
			}
			return nil
		}

		quotes, err := f.client.GetQuotes(inst.Ticker(), marketdata.GetQuotesRequest{
			Start: from,
			End:   to,
			Feed:  f.feed,
		})
		if err != nil {
			return err
		}
		for _, q := range quotes {
			ticks = append(ticks, types.Tick{Time: q.Timestamp, Bid: q.BidPrice, Ask: q.AskPrice})
		}
		return nil
	}, f.retry)
	if err != nil {
		return nil, fmt.Errorf("fetch ticks for %s: %w", symbol, err)
	}
	if len(ticks) == 0 {
		return nil, fmt.Errorf("%s ticks: %w", symbol, ErrNoData)
	}
	return ticks, nil
}

func (f *AlpacaFeed) Quote(ctx context.Context, symbol string) (types.Tick, error) {
	inst := f.instrument(symbol)

	var tick types.Tick
	err := utils.RetryWithBackoffContext(ctx, func() error {
		if inst.AssetClass == types.AssetCrypto {
			q, err := f.client.GetLatestCryptoQuote(inst.Ticker(), marketdata.GetLatestCryptoQuoteRequest{})
			if err != nil {
				return err
			}
			if q == nil {
				return utils.Permanent(ErrNoData)
			}
			tick = types.Tick{Time: q.Timestamp, Bid: q.BidPrice, Ask: q.AskPrice}
			return nil
		}

		q, err := f.client.GetLatestQuote(inst.Ticker(), marketdata.GetLatestQuoteRequest{Feed: f.feed})
		if err != nil {
			return err
		}
		if q == nil {
			return utils.Permanent(ErrNoData)
		}
		tick = types.Tick{Time: q.Timestamp, Bid: q.BidPrice, Ask: q.AskPrice}
		return nil
	}, f.retry)
	if err != nil {
		return types.Tick{}, fmt.Errorf("latest quote for %s: %w", symbol, err)
	}
	return tick, nil
}
