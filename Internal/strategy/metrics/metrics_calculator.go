package metrics

import (
	"math"
	"sort"

	"github.com/fazecat/mogulfx/Internal/strategy"
	"github.com/fazecat/mogulfx/Internal/types"
	"github.com/fazecat/mogulfx/Internal/utils"
)

type MonthR struct {
	Month string
	R     float64
}

type Summary struct {
	Wins        int
	Losses      int
	Trades      int
	TotalR      float64
	WinRatio    float64
	Monthly     []MonthR
	SpansMonths bool
}

type SymbolStats struct {
	Symbol       string
	TotalTrades  int
	Wins         int
	Losses       int
	TotalR       float64
	SharpeRatio  float64
	SortinoRatio float64
}

type SimulationParams struct {
	InitialBalance float64
	RewardPerWin   float64
	LossPerTrade   float64
}

func DefaultSimulation() SimulationParams {
	return SimulationParams{InitialBalance: 10000, RewardPerWin: 2000, LossPerTrade: 500}
}

// Summarize totals wins and losses. Only closed trades count toward the
// win ratio.
func Summarize(rows []types.BacktestRow, k float64) Summary {
	var s Summary
	for _, row := range rows {
		switch row.Outcome {
		case types.OutcomeWin:
			s.Wins++
		case types.OutcomeLoss:
			s.Losses++
		}
	}
	s.Trades = s.Wins + s.Losses
	s.TotalR = float64(s.Wins)*k - float64(s.Losses)
	if s.Trades > 0 {
		s.WinRatio = float64(s.Wins) / float64(s.Trades) * 100
	}
	s.Monthly = MonthlyR(rows, k)
	s.SpansMonths = len(s.Monthly) > 1
	return s
}

// MonthlyR groups R by YYYY-MM, ordered by month.
func MonthlyR(rows []types.BacktestRow, k float64) []MonthR {
	totals := make(map[string]float64)
	for _, row := range rows {
		if len(row.Date) < 7 {
			continue
		}
		month := row.Date[:7]
		totals[month] += strategy.RMultiple(row.Outcome, k)
	}

	months := make([]MonthR, 0, len(totals))
	for m, r := range totals {
		months = append(months, MonthR{Month: m, R: r})
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Month < months[j].Month })
	return months
}

// SimulateEquity starts at InitialBalance and records the balance after
// every row, trades or not.
func SimulateEquity(rows []types.BacktestRow, sim SimulationParams) []float64 {
	balance := sim.InitialBalance
	curve := make([]float64, 0, len(rows)+1)
	curve = append(curve, balance)
	for _, row := range rows {
		switch row.Outcome {
		case types.OutcomeWin:
			balance += sim.RewardPerWin
		case types.OutcomeLoss:
			balance -= sim.LossPerTrade
		}
		curve = append(curve, balance)
	}
	return curve
}

// MaxDrawdown is the largest peak-to-trough fall as a percentage of the peak.
func MaxDrawdown(curve []float64) float64 {
	var peak, maxDD float64
	for i, v := range curve {
		if i == 0 || v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak * 100; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// RValues returns the R of every closed trade in order.
func RValues(rows []types.BacktestRow) []float64 {
	var rs []float64
	for _, row := range rows {
		if row.Outcome.Closed() {
			rs = append(rs, row.R)
		}
	}
	return rs
}

func CalculateSharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	avgReturn := utils.Average(returns)
	stdDev := calculateStandardDeviation(returns)
	if stdDev == 0 {
		return 0.0
	}
	return (avgReturn - riskFreeRate) / stdDev
}

func CalculateSortinoRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	var negativeReturns []float64
	for _, r := range returns {
		if r < 0 {
			negativeReturns = append(negativeReturns, r)
		}
	}
	avgReturn := utils.Average(returns)
	downsideDev := calculateStandardDeviation(negativeReturns)
	if downsideDev == 0 {
		return 0.0
	}
	return (avgReturn - riskFreeRate) / downsideDev
}

func CalculateSymbolStats(rows []types.BacktestRow, k float64) map[string]*SymbolStats {
	bySymbol := make(map[string][]types.BacktestRow)
	for _, row := range rows {
		bySymbol[row.Symbol] = append(bySymbol[row.Symbol], row)
	}

	results := make(map[string]*SymbolStats)
	for symbol, symbolRows := range bySymbol {
		summary := Summarize(symbolRows, k)
		rs := RValues(symbolRows)
		results[symbol] = &SymbolStats{
			Symbol:       symbol,
			TotalTrades:  summary.Trades,
			Wins:         summary.Wins,
			Losses:       summary.Losses,
			TotalR:       summary.TotalR,
			SharpeRatio:  CalculateSharpeRatio(rs, 0),
			SortinoRatio: CalculateSortinoRatio(rs, 0),
		}
	}
	return results
}

func calculateStandardDeviation(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	mean := utils.Average(values)
	varianceSum := 0.0
	for _, v := range values {
		varianceSum += (v - mean) * (v - mean)
	}
	variance := varianceSum / float64(len(values))
	return math.Sqrt(variance)
}
