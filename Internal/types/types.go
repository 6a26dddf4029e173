package types

import "time"

type Candle struct {
	Time   time.Time `json:"t"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume float64   `json:"v"`
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool {
	return c.Close > c.Open
}

type Tick struct {
	Time time.Time `json:"t"`
	Bid  float64   `json:"bid"`
	Ask  float64   `json:"ask"`
}

type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// Label returns "Buy"/"Sell", or "No trade" for an empty direction.
func (d Direction) Label() string {
	switch d {
	case DirectionBuy:
		return "Buy"
	case DirectionSell:
		return "Sell"
	default:
		return "No trade"
	}
}

// Opposite returns the closing side for a position opened in direction d.
func (d Direction) Opposite() Direction {
	if d == DirectionBuy {
		return DirectionSell
	}
	return DirectionBuy
}

type Outcome string

const (
	OutcomeWin            Outcome = "Win"
	OutcomeLoss           Outcome = "Loss"
	OutcomeOpen           Outcome = "Open"
	OutcomePending        Outcome = "Pending"
	OutcomeExpired        Outcome = "Invalid (Time Expired)"
	OutcomeNoConfirmation Outcome = "No Confirmation"
	OutcomeNoEntry        Outcome = "No Entry"
	OutcomeNoAnchor       Outcome = "No anchor candle"
	OutcomeZeroRisk       Outcome = "Invalid (Zero Risk)"
)

// Closed reports whether the outcome is a realized win or loss.
func (o Outcome) Closed() bool {
	return o == OutcomeWin || o == OutcomeLoss
}

type TradeSignal struct {
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	Level      float64   `json:"level"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	LotSize    float64   `json:"lot_size"`
	Outcome    Outcome   `json:"outcome"`
	AnchorTime time.Time `json:"anchor_time"`
	EntryTime  time.Time `json:"entry_time,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// HasTrade is true once stop loss and take profit have been computed.
func (s TradeSignal) HasTrade() bool {
	return s.Direction != "" && s.StopLoss != 0 && s.TakeProfit != 0
}

type BacktestRow struct {
	Date       string  `json:"date"`
	Symbol     string  `json:"symbol"`
	Trade      string  `json:"trade"`
	Level      float64 `json:"level"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Outcome    Outcome `json:"outcome"`
	R          float64 `json:"r"`
}

type AssetClass string

const (
	AssetStock  AssetClass = "stock"
	AssetCrypto AssetClass = "crypto"
	AssetForex  AssetClass = "forex"
)

type Instrument struct {
	Symbol        string     `yaml:"-" json:"symbol"`
	BrokerSymbol  string     `yaml:"broker_symbol" json:"broker_symbol"`
	AssetClass    AssetClass `yaml:"asset_class" json:"asset_class"`
	Point         float64    `yaml:"point" json:"point"`
	PipSize       float64    `yaml:"pip_size" json:"pip_size"`
	ContractSize  float64    `yaml:"contract_size" json:"contract_size"`
	QuoteCurrency string     `yaml:"quote_currency" json:"quote_currency"`
}

// Ticker returns the symbol the broker knows the instrument by.
func (i Instrument) Ticker() string {
	if i.BrokerSymbol != "" {
		return i.BrokerSymbol
	}
	return i.Symbol
}

// Timeframe is a bar width in the "5Min" / "1Hour" / "1Day" notation.
type Timeframe string

const (
	Timeframe1Min  Timeframe = "1Min"
	Timeframe5Min  Timeframe = "5Min"
	Timeframe15Min Timeframe = "15Min"
	Timeframe1Hour Timeframe = "1Hour"
	Timeframe1Day  Timeframe = "1Day"
)

func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case "1Min":
		return time.Minute
	case "3Min":
		return 3 * time.Minute
	case "5Min":
		return 5 * time.Minute
	case "10Min":
		return 10 * time.Minute
	case "15Min":
		return 15 * time.Minute
	case "30Min":
		return 30 * time.Minute
	case "1Hour":
		return time.Hour
	case "2Hour":
		return 2 * time.Hour
	case "4Hour":
		return 4 * time.Hour
	case "1Day":
		return 24 * time.Hour
	case "1Week":
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// Valid reports whether the timeframe is one Duration knows.
func (tf Timeframe) Valid() bool {
	return tf.Duration() > 0
}
