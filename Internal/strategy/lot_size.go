package strategy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fazecat/mogulfx/Internal/types"
	"github.com/shopspring/decimal"
)

var (
	ErrZeroStopDistance = errors.New("stop loss equals entry")
	ErrInvalidRisk      = errors.New("risk amount must be positive")
	ErrMissingRate      = errors.New("conversion rate unavailable")
	ErrInvalidContract  = errors.New("instrument needs point and contract size")
)

type LotLimits struct {
	Min       float64
	Max       float64
	Precision int32
}

func DefaultLotLimits() LotLimits {
	return LotLimits{Min: 0.01, Max: 100, Precision: 2}
}

// IsJPYPair reports whether pip values need converting out of yen.
func IsJPYPair(inst types.Instrument) bool {
	if strings.EqualFold(inst.QuoteCurrency, "JPY") {
		return true
	}
	return strings.HasSuffix(strings.ToUpper(inst.Symbol), "JPY")
}

// CalculateLotSize sizes a position so that hitting stopLoss loses
// riskAmount dollars. conversionRate is the USDJPY bid and is only read for
// yen-quoted instruments.
func CalculateLotSize(inst types.Instrument, entry, stopLoss, riskAmount, conversionRate float64, limits LotLimits) (float64, error) {
	if riskAmount <= 0 {
		return 0, ErrInvalidRisk
	}
	if inst.Point <= 0 || inst.ContractSize <= 0 {
		return 0, fmt.Errorf("%s: %w", inst.Symbol, ErrInvalidContract)
	}
	distance := decimal.NewFromFloat(RiskDistance(entry, stopLoss))
	if distance.IsZero() {
		return 0, ErrZeroStopDistance
	}

	contract := decimal.NewFromFloat(inst.ContractSize)
	var pipValue, pipRisk decimal.Decimal
	if IsJPYPair(inst) {
		if conversionRate <= 0 {
			return 0, fmt.Errorf("%s: %w", inst.Symbol, ErrMissingRate)
		}
		pipSize := inst.PipSize
		if pipSize <= 0 {
			pipSize = 0.01
		}
		pipValue = contract.Div(decimal.NewFromFloat(conversionRate)).Div(decimal.NewFromInt(100))
		pipRisk = distance.Div(decimal.NewFromFloat(pipSize))
	} else {
		point := decimal.NewFromFloat(inst.Point)
		pipValue = point.Mul(contract)
		pipRisk = distance.Div(point)
	}

	lot := decimal.NewFromFloat(riskAmount).Div(pipRisk.Mul(pipValue))
	if limits.Precision <= 0 {
		limits.Precision = DefaultLotLimits().Precision
	}
	lot = lot.Round(limits.Precision)

	if limits.Min > 0 && lot.LessThan(decimal.NewFromFloat(limits.Min)) {
		lot = decimal.NewFromFloat(limits.Min)
	}
	if limits.Max > 0 && lot.GreaterThan(decimal.NewFromFloat(limits.Max)) {
		lot = decimal.NewFromFloat(limits.Max)
	}
	return lot.InexactFloat64(), nil
}
