package strategy

import (
	"math"

	"github.com/fazecat/mogulfx/Internal/types"
)

// TakeProfit places the target k risk-distances beyond entry.
func TakeProfit(direction types.Direction, entry, stopLoss, k float64) float64 {
	risk := RiskDistance(entry, stopLoss)
	if direction == types.DirectionSell {
		return entry - k*risk
	}
	return entry + k*risk
}

func RiskDistance(entry, stopLoss float64) float64 {
	return math.Abs(entry - stopLoss)
}

// RMultiple converts an outcome into R: +k for a win, -1 for a loss.
func RMultiple(outcome types.Outcome, k float64) float64 {
	switch outcome {
	case types.OutcomeWin:
		return k
	case types.OutcomeLoss:
		return -1
	default:
		return 0
	}
}

// ProtectionLevels sizes SL/TP for an unprotected position from recent
// candles: the lowest low protects a buy, the highest high a sell.
func ProtectionLevels(direction types.Direction, entry float64, candles []types.Candle, k float64, precision int32) (stopLoss, takeProfit float64, ok bool) {
	if len(candles) == 0 {
		return 0, 0, false
	}
	stopLoss = StopExtreme(direction, candles)
	if direction == types.DirectionBuy && stopLoss >= entry {
		return 0, 0, false
	}
	if direction == types.DirectionSell && stopLoss <= entry {
		return 0, 0, false
	}
	takeProfit = TakeProfit(direction, entry, stopLoss, k)
	return round(stopLoss, precision), round(takeProfit, precision), true
}
