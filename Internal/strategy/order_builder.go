package strategy

import (
	"fmt"
	"log"

	"github.com/fazecat/mogulfx/Internal/types"
	"github.com/fazecat/mogulfx/Internal/utils"
)

type SignalValidation struct {
	IsValid     bool
	Risk        float64
	RewardRatio float64
	Issues      []string
}

// ValidateSignal checks that prices sit on the correct side of the entry
// before anything is sent to a broker.
func ValidateSignal(signal types.TradeSignal) *SignalValidation {
	validation := &SignalValidation{
		IsValid: true,
		Issues:  []string{},
	}

	if signal.Level <= 0 || signal.StopLoss <= 0 || signal.TakeProfit <= 0 {
		validation.IsValid = false
		validation.Issues = append(validation.Issues, "Invalid price levels (must be > 0)")
	}

	switch signal.Direction {
	case types.DirectionBuy:
		if signal.StopLoss >= signal.Level {
			validation.IsValid = false
			validation.Issues = append(validation.Issues, "Stop loss must be below entry price for a buy")
		}
		if signal.TakeProfit <= signal.Level {
			validation.IsValid = false
			validation.Issues = append(validation.Issues, "Take profit must be above entry price for a buy")
		}
	case types.DirectionSell:
		if signal.StopLoss <= signal.Level {
			validation.IsValid = false
			validation.Issues = append(validation.Issues, "Stop loss must be above entry price for a sell")
		}
		if signal.TakeProfit >= signal.Level {
			validation.IsValid = false
			validation.Issues = append(validation.Issues, "Take profit must be below entry price for a sell")
		}
	default:
		validation.IsValid = false
		validation.Issues = append(validation.Issues, fmt.Sprintf("Invalid direction: %q", signal.Direction))
	}

	if signal.LotSize < 0 {
		validation.IsValid = false
		validation.Issues = append(validation.Issues, "Lot size must not be negative")
	}

	risk := RiskDistance(signal.Level, signal.StopLoss)
	if risk > 0 {
		validation.RewardRatio = utils.RoundTo(RiskDistance(signal.TakeProfit, signal.Level)/risk, 2)
	}
	validation.Risk = risk
	return validation
}

func LogSignal(signal types.TradeSignal, orderID string) {
	log.Printf("========== ORDER PLACED ==========\n")
	log.Printf("Symbol: %s | Direction: %s | Lots: %.2f\n", signal.Symbol, signal.Direction.Label(), signal.LotSize)
	log.Printf("Entry: %.5f | SL: %.5f | TP: %.5f\n", signal.Level, signal.StopLoss, signal.TakeProfit)
	log.Printf("Expires: %s\n", signal.ExpiresAt.Format("2006-01-02 15:04 MST"))
	log.Printf("Order ID: %s\n", orderID)
	log.Printf("==================================\n")
}

func round(v float64, precision int32) float64 {
	if precision <= 0 {
		precision = 5
	}
	return utils.RoundTo(v, precision)
}
