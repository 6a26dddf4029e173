package handlers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fazecat/mogulfx/Internal/broker"
	datafeed "github.com/fazecat/mogulfx/Internal/database"
	"github.com/fazecat/mogulfx/Internal/export"
	"github.com/fazecat/mogulfx/Internal/handlers/live"
	"github.com/fazecat/mogulfx/Internal/handlers/monitoring"
	"github.com/fazecat/mogulfx/Internal/handlers/risk"
	"github.com/fazecat/mogulfx/Internal/strategy"
	"github.com/fazecat/mogulfx/Internal/strategy/metrics"
	"github.com/fazecat/mogulfx/Internal/types"
	"github.com/fazecat/mogulfx/Internal/utils/config"
	"github.com/fazecat/mogulfx/Internal/utils/formatting"
)

// Backtest is the last run kept around for summary, export and simulation.
type Backtest struct {
	Symbol string
	Mode   strategy.Mode
	From   time.Time
	To     time.Time
	K      float64
	Rows   []types.BacktestRow
}

// App holds everything the menu handlers need.
type App struct {
	Config *config.Config
	Feed   broker.HistoryFeed
	Live   *live.Controller
	Risk   *risk.Manager
	Guard  *monitoring.Guard

	In  *bufio.Reader
	Out io.Writer

	mu          sync.Mutex
	last        *Backtest
	guardCancel context.CancelFunc
}

func NewApp(cfg *config.Config, feed broker.HistoryFeed, controller *live.Controller, rm *risk.Manager, guard *monitoring.Guard) *App {
	return &App{
		Config: cfg,
		Feed:   feed,
		Live:   controller,
		Risk:   rm,
		Guard:  guard,
		In:     bufio.NewReader(os.Stdin),
		Out:    os.Stdout,
	}
}

func (a *App) prompt(label string) string {
	fmt.Fprint(a.Out, label)
	line, _ := a.In.ReadString('\n')
	return strings.TrimSpace(line)
}

func (a *App) promptFloat(label string) (float64, error) {
	s := a.prompt(label)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func (a *App) promptSymbol() string {
	return strings.ToUpper(a.prompt("Enter symbol (e.g., EURUSD): "))
}

func (a *App) promptRange(loc *time.Location) (time.Time, time.Time, error) {
	from := a.prompt("Start date (YYYY-MM-DD): ")
	to := a.prompt("End date (YYYY-MM-DD): ")
	return formatting.ParseDateRange(from, to, loc)
}

// LastBacktest returns the most recent run, or nil before the first one.
func (a *App) LastBacktest() *Backtest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

func (a *App) engine() (*metrics.Engine, error) {
	engineCfg, err := metrics.EngineConfigFrom(a.Config)
	if err != nil {
		return nil, err
	}
	return metrics.NewEngine(a.Feed, engineCfg), nil
}

// HandleBacktest prompts for a symbol, date range and mode, then prints a row
// per business day.
func (a *App) HandleBacktest(ctx context.Context) {
	engine, err := a.engine()
	if err != nil {
		fmt.Fprintf(a.Out, "❌ %v\n", err)
		return
	}
	engineCfg := engine.Config()

	symbol := a.promptSymbol()
	if symbol == "" {
		fmt.Fprintln(a.Out, "Invalid symbol")
		return
	}
	from, to, err := a.promptRange(engineCfg.Location)
	if err != nil {
		fmt.Fprintf(a.Out, "❌ %v\n", err)
		return
	}
	if m := a.prompt(fmt.Sprintf("Mode (retest/confirmation) [%s]: ", engineCfg.Params.Mode)); m != "" {
		mode, err := strategy.ParseMode(strings.ToLower(m))
		if err != nil {
			fmt.Fprintf(a.Out, "❌ %v\n", err)
			return
		}
		engineCfg.Params.Mode = mode
		engine = metrics.NewEngine(a.Feed, engineCfg)
	}

	fmt.Fprintf(a.Out, "\n🔄 Backtesting %s from %s to %s (%s)...\n", symbol,
		from.Format("2006-01-02"), to.Format("2006-01-02"), engineCfg.Params.Mode)
	rows, err := engine.Run(ctx, symbol, from, to)
	if err != nil {
		fmt.Fprintf(a.Out, "❌ Backtest failed: %v\n", err)
		return
	}

	run := &Backtest{
		Symbol: symbol,
		Mode:   engineCfg.Params.Mode,
		From:   from,
		To:     to,
		K:      engineCfg.Params.RewardMultiple,
		Rows:   rows,
	}
	a.mu.Lock()
	a.last = run
	a.mu.Unlock()

	PrintBacktestRows(a.Out, rows)
	printSummary(a.Out, metrics.Summarize(rows, run.K))

	if datafeed.Enabled() {
		summary := metrics.Summarize(rows, run.K)
		id, err := datafeed.SaveBacktestRun(ctx, datafeed.RunSummary{
			Symbol:   symbol,
			Mode:     string(run.Mode),
			From:     from,
			To:       to,
			Wins:     summary.Wins,
			Losses:   summary.Losses,
			TotalR:   summary.TotalR,
			WinRatio: summary.WinRatio,
		}, rows)
		if err != nil {
			log.Printf("Error saving backtest run: %v", err)
		} else {
			fmt.Fprintf(a.Out, "💾 Saved run %s\n", id)
		}
	}
}

// PrintBacktestRows renders the per-day table.
func PrintBacktestRows(w io.Writer, rows []types.BacktestRow) {
	fmt.Fprintln(w, "\n"+formatting.Separator(86))
	fmt.Fprintf(w, "%-12s %-10s %-10s %-10s %-12s %s\n", "Date", "Trade", "Level", "Stop Loss", "Take Profit", "Result")
	fmt.Fprintln(w, formatting.Divider(86))
	for _, row := range rows {
		fmt.Fprintf(w, "%-12s %-10s %-10s %-10s %-12s %s\n", row.Date, row.Trade,
			formatting.Price(row.Level), formatting.Price(row.StopLoss), formatting.Price(row.TakeProfit), row.Outcome)
	}
	fmt.Fprintln(w, formatting.Separator(86))
}

func printSummary(w io.Writer, s metrics.Summary) {
	fmt.Fprintf(w, "\n📊 Wins: %d | Losses: %d | Total R: %s | Win ratio: %.1f%%\n",
		s.Wins, s.Losses, formatting.SignedR(s.TotalR), s.WinRatio)
	if !s.SpansMonths {
		return
	}
	fmt.Fprintln(w, "\nMonthly R:")
	for _, m := range s.Monthly {
		fmt.Fprintf(w, "  %s  %s\n", m.Month, formatting.SignedR(m.R))
	}
}

func (a *App) requireBacktest() *Backtest {
	run := a.LastBacktest()
	if run == nil {
		fmt.Fprintln(a.Out, "⚠️  Run a backtest first")
	}
	return run
}

// HandleSummary reprints the last run's totals and per-symbol ratios.
func (a *App) HandleSummary() {
	run := a.requireBacktest()
	if run == nil {
		return
	}
	fmt.Fprintf(a.Out, "\n=== %s %s → %s (%s) ===\n", run.Symbol,
		run.From.Format("2006-01-02"), run.To.Format("2006-01-02"), run.Mode)
	printSummary(a.Out, metrics.Summarize(run.Rows, run.K))
	for _, stats := range metrics.CalculateSymbolStats(run.Rows, run.K) {
		fmt.Fprintf(a.Out, "Sharpe: %.2f | Sortino: %.2f\n", stats.SharpeRatio, stats.SortinoRatio)
	}
}

// HandleExportCSV writes the last run to a CSV file.
func (a *App) HandleExportCSV() {
	run := a.requireBacktest()
	if run == nil {
		return
	}
	def := fmt.Sprintf("%s_%s_%s.csv", run.Symbol, run.From.Format("20060102"), run.To.Format("20060102"))
	path := a.prompt(fmt.Sprintf("Output file [%s]: ", def))
	if path == "" {
		path = def
	}
	if err := export.SaveBacktestCSV(path, run.Rows); err != nil {
		fmt.Fprintf(a.Out, "❌ Export failed: %v\n", err)
		return
	}
	fmt.Fprintf(a.Out, "✅ Exported %d rows to %s\n", len(run.Rows), path)
}

// HandleSimulate replays the last run against a fixed win/loss account.
func (a *App) HandleSimulate() {
	run := a.requireBacktest()
	if run == nil {
		return
	}
	sim := metrics.SimulationParams{
		InitialBalance: a.Config.Simulation.InitialBalance,
		RewardPerWin:   a.Config.Simulation.RewardPerWin,
		LossPerTrade:   a.Config.Simulation.LossPerTrade,
	}
	curve := metrics.SimulateEquity(run.Rows, sim)

	fmt.Fprintln(a.Out, "\n"+formatting.Separator(70))
	fmt.Fprintln(a.Out, "💰 ACCOUNT SIMULATION")
	fmt.Fprintln(a.Out, formatting.Separator(70))
	fmt.Fprintf(a.Out, "Starting Balance:      $%.2f\n", sim.InitialBalance)
	fmt.Fprintf(a.Out, "Per Win / Per Loss:    +$%.2f / -$%.2f\n", sim.RewardPerWin, sim.LossPerTrade)
	fmt.Fprintf(a.Out, "Final Balance:         $%.2f\n", curve[len(curve)-1])
	fmt.Fprintf(a.Out, "Max Drawdown:          %.2f%%\n", metrics.MaxDrawdown(curve))
	fmt.Fprintln(a.Out, formatting.Separator(70))
}

// HandleLotSize sizes an order for the configured dollar risk.
func (a *App) HandleLotSize() {
	symbol := a.promptSymbol()
	if symbol == "" {
		fmt.Fprintln(a.Out, "Invalid symbol")
		return
	}
	inst, _ := a.Config.Instrument(symbol)
	entry, err := a.promptFloat("Entry price: ")
	if err != nil {
		fmt.Fprintf(a.Out, "❌ %v\n", err)
		return
	}
	sl, err := a.promptFloat("Stop loss: ")
	if err != nil {
		fmt.Fprintf(a.Out, "❌ %v\n", err)
		return
	}

	var rate float64
	if strategy.IsJPYPair(inst) {
		rate = a.Config.Risk.FallbackJPYBid
		if s := a.prompt(fmt.Sprintf("USDJPY bid [%g]: ", rate)); s != "" {
			if rate, err = strconv.ParseFloat(s, 64); err != nil {
				fmt.Fprintf(a.Out, "❌ invalid rate %q\n", s)
				return
			}
		}
	}

	lots, err := a.Risk.SizeOrder(inst, entry, sl, rate)
	if err != nil {
		fmt.Fprintf(a.Out, "❌ %v\n", err)
		return
	}
	fmt.Fprintf(a.Out, "📐 %s: %.2f lots risks $%.2f over %s\n", symbol, lots,
		a.Risk.RiskAmountUSD, formatting.Price(strategy.RiskDistance(entry, sl)))
}

// HandleLiveMenu starts, stops and reports on the live order runner.
func (a *App) HandleLiveMenu(ctx context.Context) {
	for {
		state := "stopped"
		if a.Live.Running() {
			state = "running"
		}
		fmt.Fprintf(a.Out, "\n--- Live Trading (%s) ---\n", state)
		fmt.Fprintln(a.Out, "1. Start")
		fmt.Fprintln(a.Out, "2. Stop")
		fmt.Fprintln(a.Out, "3. Status")
		fmt.Fprintln(a.Out, "4. Run Once")
		fmt.Fprintln(a.Out, "5. Back")

		switch a.prompt("Enter choice (1-5): ") {
		case "1":
			if err := a.Live.Start(ctx); err != nil {
				fmt.Fprintf(a.Out, "❌ %v\n", err)
				continue
			}
			fmt.Fprintf(a.Out, "🚀 Live trading started for %s\n", strings.Join(a.Live.Trader().Symbols(), ", "))
		case "2":
			if err := a.Live.Stop(); err != nil {
				fmt.Fprintf(a.Out, "❌ %v\n", err)
				continue
			}
			fmt.Fprintln(a.Out, "🛑 Live trading stopped")
		case "3":
			a.printLiveStatus()
		case "4":
			reports, err := a.Live.Trader().RunOnce(ctx)
			if err != nil {
				fmt.Fprintf(a.Out, "❌ %v\n", err)
			}
			for _, r := range reports {
				fmt.Fprintf(a.Out, "  %s\n", r)
			}
		case "5":
			return
		default:
			fmt.Fprintln(a.Out, "Invalid choice. Try again.")
		}
	}
}

func (a *App) printLiveStatus() {
	status := a.Live.Status()
	fmt.Fprintf(a.Out, "Running:     %v\n", status.Running)
	fmt.Fprintf(a.Out, "Symbols:     %s\n", strings.Join(status.Symbols, ", "))
	if !status.LastRun.IsZero() {
		fmt.Fprintf(a.Out, "Last run:    %s\n", status.LastRun.Format("2006-01-02 15:04:05"))
	}
	for symbol, day := range status.Placed {
		fmt.Fprintf(a.Out, "Placed:      %s on %s\n", symbol, day)
	}
	fmt.Fprintf(a.Out, "Orders:      %d watched, %d filled, %d expired\n", status.Orders.Total, status.Orders.Filled, status.Orders.Expired)
	fmt.Fprintf(a.Out, "Daily loss:  %.1fR (%s)\n", status.Risk.DailyLossR, status.Risk.HealthStatus)
}

// HandleProtectionGuard toggles the background SL/TP guard.
func (a *App) HandleProtectionGuard(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.guardCancel != nil {
		a.guardCancel()
		a.guardCancel = nil
		fmt.Fprintln(a.Out, "🛑 Protection guard stopped")
		return
	}

	n, err := a.Guard.Check(ctx)
	if err != nil {
		fmt.Fprintf(a.Out, "❌ Protection check failed: %v\n", err)
		return
	}
	fmt.Fprintf(a.Out, "🛡️  Protected %d position(s)\n", n)

	guardCtx, cancel := context.WithCancel(ctx)
	a.guardCancel = cancel
	go func() {
		if err := a.Guard.Run(guardCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Protection guard stopped: %v", err)
		}
	}()
	fmt.Fprintf(a.Out, "🛡️  Protection guard running every %s\n", a.Guard.Interval)
}

// StopGuard stops the background guard if it is running.
func (a *App) StopGuard() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.guardCancel != nil {
		a.guardCancel()
		a.guardCancel = nil
	}
}

// HandleRangeBreach reports which side of the early range each day broke.
func (a *App) HandleRangeBreach(ctx context.Context) {
	engine, err := a.engine()
	if err != nil {
		fmt.Fprintf(a.Out, "❌ %v\n", err)
		return
	}
	symbol := a.promptSymbol()
	from, to, err := a.promptRange(engine.Config().Location)
	if err != nil {
		fmt.Fprintf(a.Out, "❌ %v\n", err)
		return
	}

	results, err := engine.RunRangeBreach(ctx, symbol, from, to)
	if err != nil {
		fmt.Fprintf(a.Out, "❌ Range breach failed: %v\n", err)
		return
	}
	fmt.Fprintln(a.Out, "\n"+formatting.Separator(70))
	fmt.Fprintf(a.Out, "📏 RANGE BREACH %s\n", symbol)
	fmt.Fprintln(a.Out, formatting.Separator(70))
	for _, r := range results {
		fmt.Fprintln(a.Out, r.String())
	}
}

// HandlePsychLevel runs the round-number fade backtest.
func (a *App) HandlePsychLevel(ctx context.Context) {
	engine, err := a.engine()
	if err != nil {
		fmt.Fprintf(a.Out, "❌ %v\n", err)
		return
	}
	symbol := a.promptSymbol()
	from, to, err := a.promptRange(engine.Config().Location)
	if err != nil {
		fmt.Fprintf(a.Out, "❌ %v\n", err)
		return
	}
	inst, _ := a.Config.Instrument(symbol)

	report, err := engine.RunPsychLevel(ctx, symbol, from, to, inst)
	if err != nil {
		fmt.Fprintf(a.Out, "❌ Psych level backtest failed: %v\n", err)
		return
	}
	PrintPsychReport(a.Out, symbol, report)
}

func PrintPsychReport(w io.Writer, symbol string, report strategy.PsychReport) {
	fmt.Fprintln(w, "\n"+formatting.Separator(70))
	fmt.Fprintf(w, "🎯 PSYCH LEVEL %s\n", symbol)
	fmt.Fprintln(w, formatting.Separator(70))
	for _, t := range report.Trades {
		fmt.Fprintf(w, "%s  %-4s @ %-10s SL %-10s TP %-10s %-5s %+9.2f  $%.2f\n", t.Date, t.Direction.Label(),
			formatting.Price(t.Entry), formatting.Price(t.StopLoss), formatting.Price(t.TakeProfit), t.Outcome, t.Profit, t.Balance)
	}
	fmt.Fprintln(w, formatting.Divider(70))
	fmt.Fprintf(w, "Trades: %d | Wins: %d | Losses: %d | Win rate: %.1f%%\n",
		len(report.Trades), report.Wins, report.Losses, report.WinRate())
	fmt.Fprintf(w, "Total R: %s | Final balance: $%.2f\n", formatting.SignedR(report.TotalR), report.Balance)
}

// HandleRiskReport prints the risk manager dashboard with recent events.
func (a *App) HandleRiskReport() {
	if a.Risk == nil {
		fmt.Fprintln(a.Out, "Risk Manager not available yet")
		return
	}
	report := a.Risk.GenerateRiskReport()
	report.Print()
	for _, event := range a.Risk.GetRiskEvents(10) {
		fmt.Fprintf(a.Out, "  %s  %-20s %-8s %s\n", event.Timestamp.Format("15:04:05"), event.EventType, event.Symbol, event.Details)
	}
}

// HandleOrderHistory shows watched orders from this session and, when a
// database is configured, the stored order log.
func (a *App) HandleOrderHistory(ctx context.Context) {
	a.Live.Trader().History.PrintReport()
	if !datafeed.Enabled() {
		return
	}
	orders, err := datafeed.GetRecentOrders(ctx, 20)
	if err != nil {
		fmt.Fprintf(a.Out, "Error retrieving orders: %v\n", err)
		return
	}
	if len(orders) == 0 {
		fmt.Fprintln(a.Out, "\nNo orders found in database")
		return
	}
	fmt.Fprintf(a.Out, "\nStored Orders (latest %d):\n", len(orders))
	for _, o := range orders {
		fmt.Fprintf(a.Out, "  %s | %s %s x %s @ %s | SL %s TP %s | %s\n", o.ExpiresAt.Format("2006-01-02"),
			o.Symbol, o.Side, o.LotSize, o.Price, o.StopLoss, o.TakeProfit, o.Status)
	}
}

// HandleBacktestMenu groups the research tools.
func (a *App) HandleBacktestMenu(ctx context.Context) {
	for {
		fmt.Fprintln(a.Out, "\n--- Backtest Menu ---")
		fmt.Fprintln(a.Out, "1. Run Anchor Backtest")
		fmt.Fprintln(a.Out, "2. Summary & Monthly R")
		fmt.Fprintln(a.Out, "3. Export CSV")
		fmt.Fprintln(a.Out, "4. Simulate Account")
		fmt.Fprintln(a.Out, "5. Range Breach")
		fmt.Fprintln(a.Out, "6. Psych Level Fade")
		fmt.Fprintln(a.Out, "7. Back")

		switch a.prompt("Enter choice (1-7): ") {
		case "1":
			a.HandleBacktest(ctx)
		case "2":
			a.HandleSummary()
		case "3":
			a.HandleExportCSV()
		case "4":
			a.HandleSimulate()
		case "5":
			a.HandleRangeBreach(ctx)
		case "6":
			a.HandlePsychLevel(ctx)
		case "7":
			return
		default:
			fmt.Fprintln(a.Out, "Invalid choice. Try again.")
		}
	}
}
