package strategy

import (
	"math"
	"time"

	"github.com/fazecat/mogulfx/Internal/types"
	"github.com/fazecat/mogulfx/Internal/utils"
)

type PsychParams struct {
	Session         Clock
	TriggerPips     float64
	StopLossPips    float64
	TakeProfitPips  float64
	RiskPercent     float64
	StartingBalance float64
	PipSize         float64
}

func DefaultPsychParams() PsychParams {
	return PsychParams{
		Session:         Clock{Hour: 8},
		TriggerPips:     15,
		StopLossPips:    10,
		TakeProfitPips:  50,
		RiskPercent:     5,
		StartingBalance: 1000,
		PipSize:         0.0001,
	}
}

type PsychTrade struct {
	Date       string
	Direction  types.Direction
	Entry      float64
	StopLoss   float64
	TakeProfit float64
	Outcome    types.Outcome
	Profit     float64
	Balance    float64
}

type PsychReport struct {
	Trades  []PsychTrade
	Wins    int
	Losses  int
	TotalR  float64
	Balance float64
	Curve   []float64
}

func (r PsychReport) WinRate() float64 {
	if len(r.Trades) == 0 {
		return 0
	}
	return float64(r.Wins) / float64(len(r.Trades)) * 100
}

// ApproximatePsychLevel snaps a price to the nearby 00 or 50 pip level.
func ApproximatePsychLevel(price float64) float64 {
	return approximateLevel(price, 0.0001)
}

func approximateLevel(price, pipSize float64) float64 {
	whole := math.Trunc(price)
	pips := (price - whole) / pipSize
	hundreds := math.Floor(pips / 100)

	switch rem := math.Mod(pips, 100); {
	case rem < 40:
		pips = hundreds * 100
	case rem <= 69:
		pips = hundreds*100 + 50
	default:
		pips = (hundreds + 1) * 100
	}
	return utils.RoundTo(whole+pips*pipSize, 5)
}

// RunPsychLevel fades a move of TriggerPips away from the session open's
// psychological level on every weekday, compounding RiskPercent of the
// running balance per trade.
func RunPsychLevel(candles []types.Candle, loc *time.Location, params PsychParams) PsychReport {
	if params.PipSize <= 0 {
		params.PipSize = 0.0001
	}
	report := PsychReport{Balance: params.StartingBalance}
	rewardR := params.TakeProfitPips / params.StopLossPips

	for i, c := range candles {
		t := c.Time.In(loc)
		if t.Hour() != params.Session.Hour || t.Minute() != params.Session.Minute {
			continue
		}
		if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}

		trade, ok := fadePsychLevel(candles[i:], params)
		if !ok {
			continue
		}
		trade.Date = t.Format("2006-01-02")

		risk := utils.RoundTo(params.RiskPercent/100*report.Balance, 5)
		switch trade.Outcome {
		case types.OutcomeWin:
			trade.Profit = utils.RoundTo(rewardR*risk, 5)
			report.Wins++
			report.TotalR += rewardR
		case types.OutcomeLoss:
			trade.Profit = -risk
			report.Losses++
			report.TotalR--
		}
		report.Balance = utils.RoundTo(report.Balance+trade.Profit, 5)
		trade.Balance = report.Balance
		report.Curve = append(report.Curve, report.Balance)
		report.Trades = append(report.Trades, trade)
	}
	return report
}

func fadePsychLevel(candles []types.Candle, params PsychParams) (PsychTrade, bool) {
	level := approximateLevel(candles[0].Open, params.PipSize)
	trigger := params.TriggerPips * params.PipSize
	upper := utils.RoundTo(level+trigger, 5)
	lower := utils.RoundTo(level-trigger, 5)
	sl := params.StopLossPips * params.PipSize
	tp := params.TakeProfitPips * params.PipSize

	var trade PsychTrade
	opened := false
	for _, c := range candles {
		if !opened {
			switch {
			case c.High >= upper:
				trade = PsychTrade{
					Direction:  types.DirectionSell,
					Entry:      upper,
					StopLoss:   utils.RoundTo(upper+sl, 5),
					TakeProfit: utils.RoundTo(upper-tp, 5),
				}
				opened = true
			case c.Low <= lower:
				trade = PsychTrade{
					Direction:  types.DirectionBuy,
					Entry:      lower,
					StopLoss:   utils.RoundTo(lower-sl, 5),
					TakeProfit: utils.RoundTo(lower+tp, 5),
				}
				opened = true
			}
			continue
		}
		signal := types.TradeSignal{Direction: trade.Direction, StopLoss: trade.StopLoss, TakeProfit: trade.TakeProfit}
		if outcome := EvaluateOutcome([]types.Candle{c}, signal); outcome.Closed() {
			trade.Outcome = outcome
			return trade, true
		}
	}
	if !opened {
		return PsychTrade{}, false
	}
	trade.Outcome = types.OutcomeOpen
	return trade, true
}
