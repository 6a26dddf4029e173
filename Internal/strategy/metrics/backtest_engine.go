package metrics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fazecat/mogulfx/Internal/broker"
	"github.com/fazecat/mogulfx/Internal/strategy"
	"github.com/fazecat/mogulfx/Internal/types"
	"github.com/fazecat/mogulfx/Internal/utils/config"
)

type EngineConfig struct {
	Timeframe types.Timeframe
	Anchor    strategy.Clock
	Location  *time.Location
	Params    strategy.Params
	Range     strategy.RangeSession
	Psych     strategy.PsychParams
}

// EngineConfigFrom maps the strategy section of cfg onto an EngineConfig.
func EngineConfigFrom(cfg *config.Config) (EngineConfig, error) {
	anchor, err := strategy.ParseClock(cfg.Strategy.AnchorTime)
	if err != nil {
		return EngineConfig{}, err
	}
	loc, err := strategy.LoadLocation(cfg.Strategy.Timezone)
	if err != nil {
		return EngineConfig{}, err
	}
	mode, err := strategy.ParseMode(cfg.Strategy.Mode)
	if err != nil {
		return EngineConfig{}, err
	}
	rangeStart, err := strategy.ParseClock(cfg.RangeBreach.RangeStart)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("range_breach.range_start: %w", err)
	}
	watchStart, err := strategy.ParseClock(cfg.RangeBreach.WatchStart)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("range_breach.watch_start: %w", err)
	}

	psych := strategy.DefaultPsychParams()
	psych.Session = strategy.Clock{Hour: cfg.PsychLevel.SessionHour}
	psych.TriggerPips = cfg.PsychLevel.TriggerPips
	psych.StopLossPips = cfg.PsychLevel.StopLossPips
	psych.TakeProfitPips = cfg.PsychLevel.TakeProfitPips
	psych.RiskPercent = cfg.PsychLevel.RiskPercent
	psych.StartingBalance = cfg.PsychLevel.StartingBalance

	return EngineConfig{
		Timeframe: types.Timeframe(cfg.Strategy.Timeframe),
		Anchor:    anchor,
		Location:  loc,
		Params: strategy.Params{
			Mode:           mode,
			RewardMultiple: cfg.Strategy.RewardMultiple,
			Invalidation:   cfg.Invalidation(),
			Precision:      cfg.Strategy.PricePrecision,
		},
		Range: strategy.RangeSession{
			RangeStart: rangeStart,
			RangeHours: cfg.RangeBreach.RangeHours,
			WatchStart: watchStart,
			WatchHours: cfg.RangeBreach.WatchHours,
		},
		Psych: psych,
	}, nil
}

// Engine replays the anchor strategy over history one business day at a time.
type Engine struct {
	Feed broker.HistoryFeed
	cfg  EngineConfig
}

func NewEngine(feed broker.HistoryFeed, cfg EngineConfig) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = types.Timeframe5Min
	}
	return &Engine{Feed: feed, cfg: cfg}
}

func (e *Engine) Config() EngineConfig {
	return e.cfg
}

func (e *Engine) dayBounds(from, to time.Time) (time.Time, time.Time) {
	loc := e.cfg.Location
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	return start, end
}

// Run fetches [from, to+1d) once and evaluates every weekday. The walk for
// a day continues into later days so open trades can still resolve.
func (e *Engine) Run(ctx context.Context, symbol string, from, to time.Time) ([]types.BacktestRow, error) {
	start, end := e.dayBounds(from, to)
	candles, err := e.Feed.Candles(ctx, symbol, e.cfg.Timeframe, start, end)
	if err != nil {
		return nil, fmt.Errorf("backtest %s: %w", symbol, err)
	}

	var rows []types.BacktestRow
	for _, day := range strategy.BusinessDays(start, end.AddDate(0, 0, -1)) {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		if len(strategy.CandlesOnDate(candles, day, e.cfg.Location)) == 0 {
			log.Printf("⏭️  %s: no candles for %s\n", symbol, day.Format("2006-01-02"))
			continue
		}

		idx := strategy.FindAnchorOnDate(candles, day, e.cfg.Anchor, e.cfg.Location)
		if idx < 0 {
			rows = append(rows, types.BacktestRow{
				Date:    day.Format("2006-01-02"),
				Symbol:  symbol,
				Trade:   types.Direction("").Label(),
				Outcome: types.OutcomeNoAnchor,
			})
			continue
		}

		signal := strategy.Evaluate(candles, idx, e.cfg.Params)
		signal.Symbol = symbol
		rows = append(rows, RowFromSignal(day, signal, e.cfg.Params.RewardMultiple))
	}
	return rows, nil
}

// RowFromSignal flattens a signal into a result row.
func RowFromSignal(day time.Time, signal types.TradeSignal, k float64) types.BacktestRow {
	row := types.BacktestRow{
		Date:    day.Format("2006-01-02"),
		Symbol:  signal.Symbol,
		Trade:   types.Direction("").Label(),
		Level:   signal.Level,
		Outcome: signal.Outcome,
		R:       strategy.RMultiple(signal.Outcome, k),
	}
	if signal.HasTrade() {
		row.Trade = signal.Direction.Label()
		row.StopLoss = signal.StopLoss
		row.TakeProfit = signal.TakeProfit
	}
	return row
}

// RunRangeBreach checks every weekday for a breach of the early range.
func (e *Engine) RunRangeBreach(ctx context.Context, symbol string, from, to time.Time) ([]strategy.RangeBreachResult, error) {
	start, end := e.dayBounds(from, to)
	loc := e.cfg.Location

	var results []strategy.RangeBreachResult
	for _, day := range strategy.BusinessDays(start, end.AddDate(0, 0, -1)) {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		rangeFrom, rangeTo := e.cfg.Range.RangeWindow(day, loc)
		rangeEnd := rangeTo.Add(time.Hour)
		candles, err := e.Feed.Candles(ctx, symbol, types.Timeframe1Hour, rangeFrom, rangeEnd)
		if err != nil {
			results = append(results, strategy.RangeBreachResult{Date: day.Format("2006-01-02"), Err: err})
			continue
		}
		candles = broker.CandlesBefore(candles, rangeEnd)

		watchFrom, watchTo := e.cfg.Range.WatchWindow(day, loc)
		ticks, err := e.Feed.Ticks(ctx, symbol, watchFrom, watchTo)
		if err != nil && !errors.Is(err, broker.ErrNoData) {
			results = append(results, strategy.RangeBreachResult{Date: day.Format("2006-01-02"), Err: err})
			continue
		}
		results = append(results, strategy.EvaluateRangeBreach(day, candles, ticks))
	}
	return results, nil
}

// RunPsychLevel replays the psychological level fade on 1 minute candles.
func (e *Engine) RunPsychLevel(ctx context.Context, symbol string, from, to time.Time, inst types.Instrument) (strategy.PsychReport, error) {
	start, end := e.dayBounds(from, to)
	candles, err := e.Feed.Candles(ctx, symbol, types.Timeframe1Min, start, end)
	if err != nil {
		return strategy.PsychReport{}, fmt.Errorf("psych level %s: %w", symbol, err)
	}
	params := e.cfg.Psych
	if inst.PipSize > 0 {
		params.PipSize = inst.PipSize
	}
	return strategy.RunPsychLevel(candles, e.cfg.Location, params), nil
}
