package strategy

import (
	"fmt"
	"time"

	"github.com/fazecat/mogulfx/Internal/types"
	"github.com/fazecat/mogulfx/Internal/utils"
)

type Mode string

const (
	// ModeConfirmation stops at the first close beyond the level and asks
	// for a pending limit order there.
	ModeConfirmation Mode = "confirmation"
	// ModeRetest waits for the level to be retested and then resolves the
	// trade against the remaining candles.
	ModeRetest Mode = "retest"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeConfirmation, ModeRetest:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown strategy mode %q", s)
}

type Params struct {
	Mode           Mode
	RewardMultiple float64
	Invalidation   time.Duration
	Precision      int32
}

func DefaultParams() Params {
	return Params{
		Mode:           ModeRetest,
		RewardMultiple: 4,
		Invalidation:   6 * time.Hour,
		Precision:      5,
	}
}

func (p Params) withDefaults() Params {
	def := DefaultParams()
	if p.Mode == "" {
		p.Mode = def.Mode
	}
	if p.RewardMultiple <= 0 {
		p.RewardMultiple = def.RewardMultiple
	}
	if p.Invalidation <= 0 {
		p.Invalidation = def.Invalidation
	}
	if p.Precision <= 0 {
		p.Precision = def.Precision
	}
	return p
}

// AnchorDirection derives trade side and level from the anchor candle.
// A bullish anchor is faded from its low; anything else (doji included)
// is bought above its high.
func AnchorDirection(anchor types.Candle, precision int32) (types.Direction, float64) {
	if anchor.Bullish() {
		return types.DirectionSell, utils.RoundTo(anchor.Low, precision)
	}
	return types.DirectionBuy, utils.RoundTo(anchor.High, precision)
}

// Evaluate walks the candles following candles[anchorIdx].
func Evaluate(candles []types.Candle, anchorIdx int, params Params) types.TradeSignal {
	if anchorIdx < 0 || anchorIdx >= len(candles) {
		return types.TradeSignal{Outcome: types.OutcomeNoAnchor}
	}
	params = params.withDefaults()

	anchor := candles[anchorIdx]
	direction, level := AnchorDirection(anchor, params.Precision)
	signal := types.TradeSignal{
		Direction:  direction,
		Level:      level,
		AnchorTime: anchor.Time,
		ExpiresAt:  anchor.Time.Add(params.Invalidation),
	}

	confirmed := false
	retested := false
	last := anchorIdx

	for i := anchorIdx + 1; i < len(candles); i++ {
		c := candles[i]
		if c.Time.After(signal.ExpiresAt) {
			signal.Outcome = types.OutcomeExpired
			return signal
		}
		last = i

		if !confirmed {
			confirmed = closesBeyond(direction, c, level)
			continue
		}
		if params.Mode == ModeConfirmation {
			continue
		}

		if !retested {
			retested = touches(direction, c, level)
		}
		if retested && entered(direction, c, level) {
			signal.EntryTime = c.Time
			if !setTargets(&signal, candles[anchorIdx:i+1], params) {
				return signal
			}
			signal.Outcome = EvaluateOutcome(candles[i+1:], signal)
			return signal
		}
	}

	switch {
	case !confirmed:
		signal.Outcome = types.OutcomeNoConfirmation
	case params.Mode == ModeConfirmation:
		if setTargets(&signal, candles[anchorIdx:last+1], params) {
			signal.Outcome = types.OutcomePending
		}
	default:
		signal.Outcome = types.OutcomeNoEntry
	}
	return signal
}

// setTargets fills SL/TP from the window's extreme. It reports false and
// marks the signal zero-risk when the stop sits on the level.
func setTargets(signal *types.TradeSignal, window []types.Candle, params Params) bool {
	signal.StopLoss = utils.RoundTo(StopExtreme(signal.Direction, window), params.Precision)
	if RiskDistance(signal.Level, signal.StopLoss) == 0 {
		signal.StopLoss = 0
		signal.Outcome = types.OutcomeZeroRisk
		return false
	}
	signal.TakeProfit = utils.RoundTo(
		TakeProfit(signal.Direction, signal.Level, signal.StopLoss, params.RewardMultiple),
		params.Precision,
	)
	return true
}

// StopExtreme is the lowest low for a buy or the highest high for a sell.
func StopExtreme(direction types.Direction, candles []types.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	extreme := candles[0].Low
	if direction == types.DirectionSell {
		extreme = candles[0].High
	}
	for _, c := range candles[1:] {
		if direction == types.DirectionSell {
			if c.High > extreme {
				extreme = c.High
			}
		} else if c.Low < extreme {
			extreme = c.Low
		}
	}
	return extreme
}

// EvaluateOutcome resolves an entered trade. Take profit wins ties with
// stop loss on the same candle.
func EvaluateOutcome(candles []types.Candle, signal types.TradeSignal) types.Outcome {
	for _, c := range candles {
		switch signal.Direction {
		case types.DirectionBuy:
			if c.High >= signal.TakeProfit {
				return types.OutcomeWin
			}
			if c.Low <= signal.StopLoss {
				return types.OutcomeLoss
			}
		case types.DirectionSell:
			if c.Low <= signal.TakeProfit {
				return types.OutcomeWin
			}
			if c.High >= signal.StopLoss {
				return types.OutcomeLoss
			}
		}
	}
	return types.OutcomeOpen
}

func closesBeyond(direction types.Direction, c types.Candle, level float64) bool {
	if direction == types.DirectionSell {
		return c.Close < level
	}
	return c.Close > level
}

func touches(direction types.Direction, c types.Candle, level float64) bool {
	if direction == types.DirectionSell {
		return c.High >= level
	}
	return c.Low <= level
}

func entered(direction types.Direction, c types.Candle, level float64) bool {
	if direction == types.DirectionSell {
		return c.Low <= level
	}
	return c.High >= level
}
