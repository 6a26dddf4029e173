package live

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fazecat/mogulfx/Internal/broker"
	datafeed "github.com/fazecat/mogulfx/Internal/database"
	"github.com/fazecat/mogulfx/Internal/handlers/monitoring"
	"github.com/fazecat/mogulfx/Internal/handlers/risk"
	"github.com/fazecat/mogulfx/Internal/notifications"
	"github.com/fazecat/mogulfx/Internal/strategy"
	"github.com/fazecat/mogulfx/Internal/types"
	"github.com/fazecat/mogulfx/Internal/utils/config"
)

type Settings struct {
	Symbols         []string
	Timeframe       types.Timeframe
	Lookback        int
	Anchor          strategy.Clock
	Location        *time.Location
	Params          strategy.Params
	Comment         string
	Magic           int
	PollInterval    time.Duration
	ReconnectDelay  time.Duration
	MonitorInterval time.Duration
	JPYRateSymbol   string
	FallbackJPYBid  float64
}

func SettingsFrom(cfg *config.Config) (Settings, error) {
	anchor, err := strategy.ParseClock(cfg.Strategy.AnchorTime)
	if err != nil {
		return Settings{}, err
	}
	mode, err := strategy.ParseMode(cfg.Live.Mode)
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		Symbols:   append([]string(nil), cfg.Live.Symbols...),
		Timeframe: types.Timeframe(cfg.Strategy.Timeframe),
		Lookback:  cfg.Live.LookbackCandles,
		Anchor:    anchor,
		Location:  cfg.Location(),
		Params: strategy.Params{
			Mode:           mode,
			RewardMultiple: cfg.Strategy.RewardMultiple,
			Invalidation:   cfg.Invalidation(),
			Precision:      cfg.Strategy.PricePrecision,
		},
		Comment:         cfg.Live.OrderComment,
		Magic:           cfg.Live.Magic,
		PollInterval:    cfg.PollInterval(),
		ReconnectDelay:  cfg.ReconnectDelay(),
		MonitorInterval: cfg.OrderMonitorInterval(),
		JPYRateSymbol:   cfg.Risk.JPYRateSymbol,
		FallbackJPYBid:  cfg.Risk.FallbackJPYBid,
	}, nil
}

// Action is what a RunOnce pass did for one symbol.
type Action string

const (
	ActionError     Action = "error"
	ActionNoCandles Action = "no candles today"
	ActionNoAnchor  Action = "no anchor candle"
	ActionWaiting   Action = "waiting"
	ActionPlacedDay Action = "already placed today"
	ActionDuplicate Action = "duplicate pending order"
	ActionBlocked   Action = "blocked by risk"
	ActionPlaced    Action = "order placed"
)

type SymbolReport struct {
	Symbol  string
	Action  Action
	Signal  types.TradeSignal
	OrderID string
	Err     error
}

func (r SymbolReport) String() string {
	switch r.Action {
	case ActionError, ActionBlocked:
		return fmt.Sprintf("%s: %s (%v)", r.Symbol, r.Action, r.Err)
	case ActionWaiting:
		return fmt.Sprintf("%s: %s (%s)", r.Symbol, r.Action, r.Signal.Outcome)
	case ActionPlaced:
		return fmt.Sprintf("%s: %s %s %.2f lots @ %g (ID: %s)", r.Symbol, r.Action,
			r.Signal.Direction.Label(), r.Signal.LotSize, r.Signal.Level, r.OrderID)
	default:
		return fmt.Sprintf("%s: %s", r.Symbol, r.Action)
	}
}

// Trader places the day's pending order per symbol once the anchor breakout
// is confirmed, and watches it until it fills or expires.
type Trader struct {
	Terminal broker.Terminal
	Risk     *risk.Manager
	Notifier notifications.Notifier
	History  *monitoring.History
	Resolve  func(symbol string) types.Instrument
	Now      func() time.Time

	settings Settings

	mu        sync.Mutex
	symbols   []string
	placed    map[string]string // symbol -> date of last order
	positions map[string]broker.Position
	running   bool
	startedAt time.Time
	lastRun   time.Time

	// Order watchers outlive Run so a stopped runner still cancels its
	// orders at expiry. Close ends them.
	watchCtx  context.Context
	stopWatch context.CancelFunc
	watching  map[string]struct{}
	watchers  sync.WaitGroup
}

func NewTrader(terminal broker.Terminal, rm *risk.Manager, notifier notifications.Notifier, settings Settings) *Trader {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if notifier == nil {
		notifier = notifications.Console{}
	}
	watchCtx, stopWatch := context.WithCancel(context.Background())
	return &Trader{
		Terminal:  terminal,
		Risk:      rm,
		Notifier:  notifier,
		History:   &monitoring.History{},
		Resolve:   config.InferInstrument,
		Now:       time.Now,
		settings:  settings,
		symbols:   append([]string(nil), settings.Symbols...),
		placed:    make(map[string]string),
		positions: make(map[string]broker.Position),
		watchCtx:  watchCtx,
		stopWatch: stopWatch,
		watching:  make(map[string]struct{}),
	}
}

// SetSymbols swaps the watched symbols; used on config reload.
func (t *Trader) SetSymbols(symbols []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.symbols = append([]string(nil), symbols...)
	log.Printf("🔄 Live symbols: %v\n", t.symbols)
}

func (t *Trader) Symbols() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.symbols...)
}

// RunOnce evaluates every symbol. The error is only set when the terminal
// could not be reached at all.
func (t *Trader) RunOnce(ctx context.Context) ([]SymbolReport, error) {
	if err := t.reconcile(ctx); err != nil {
		return nil, err
	}

	symbols := t.Symbols()
	reports := make([]SymbolReport, 0, len(symbols))
	for _, symbol := range symbols {
		report := t.runSymbol(ctx, symbol)
		if report.Err != nil {
			log.Printf("⚠️  %s\n", report)
		}
		reports = append(reports, report)
	}

	t.mu.Lock()
	t.lastRun = t.Now()
	t.mu.Unlock()
	return reports, nil
}

func (t *Trader) runSymbol(ctx context.Context, symbol string) SymbolReport {
	s := t.settings
	report := SymbolReport{Symbol: symbol}

	candles, err := t.Terminal.RecentCandles(ctx, symbol, s.Timeframe, s.Lookback)
	if err != nil {
		report.Action, report.Err = ActionError, err
		return report
	}

	now := t.Now().In(s.Location)
	today := strategy.CandlesOnDate(candles, now, s.Location)
	if len(today) == 0 {
		report.Action = ActionNoCandles
		return report
	}
	idx := strategy.FindAnchorCandle(today, s.Anchor, s.Location)
	if idx < 0 {
		report.Action = ActionNoAnchor
		return report
	}

	signal := strategy.Evaluate(today, idx, s.Params)
	signal.Symbol = symbol
	report.Signal = signal
	if signal.Outcome != types.OutcomePending {
		report.Action = ActionWaiting
		return report
	}

	if t.placedOn(symbol, now) {
		report.Action = ActionPlacedDay
		return report
	}
	pending, err := t.Terminal.PendingOrders(ctx, symbol)
	if err != nil {
		report.Action, report.Err = ActionError, err
		return report
	}
	if existing, ok := broker.FindOrder(pending, symbol, signal.Direction, signal.Level); ok {
		t.markPlaced(symbol, now)
		report.Action, report.OrderID = ActionDuplicate, existing.ID
		// left by an earlier run
		t.watch(existing, signal.ExpiresAt)
		return report
	}

	if check := t.Risk.CanPlaceOrder(symbol); !check.Valid {
		report.Action, report.Err = ActionBlocked, fmt.Errorf("%v", check.Errors)
		return report
	}

	inst := t.Resolve(symbol)
	lots, err := t.Risk.SizeOrder(inst, signal.Level, signal.StopLoss, t.conversionRate(ctx, inst))
	if err != nil {
		report.Action, report.Err = ActionBlocked, err
		return report
	}
	signal.LotSize = lots
	report.Signal = signal

	if v := strategy.ValidateSignal(signal); !v.IsValid {
		report.Action, report.Err = ActionBlocked, fmt.Errorf("invalid signal: %v", v.Issues)
		return report
	}

	order, err := t.Terminal.PlaceLimitOrder(ctx, broker.RequestFromSignal(signal, s.Comment, s.Magic))
	if err != nil {
		report.Action, report.Err = ActionError, fmt.Errorf("place order: %w", err)
		return report
	}

	t.markPlaced(symbol, now)
	t.Risk.RecordOrderPlaced(symbol)
	strategy.LogSignal(signal, order.ID)
	report.Action, report.OrderID = ActionPlaced, order.ID

	t.notify(ctx, notifications.Message{
		Level:  notifications.LevelInfo,
		Title:  "Order placed",
		Body:   fmt.Sprintf("%s %.2f lots @ %g SL %g TP %g", signal.Direction.Label(), lots, signal.Level, signal.StopLoss, signal.TakeProfit),
		Symbol: symbol,
	})
	if datafeed.Enabled() {
		if err := datafeed.LogOrderPlacement(ctx, signal, order.ID, order.ClientOrderID); err != nil {
			log.Printf("⚠️  log order %s: %v\n", order.ID, err)
		}
	}

	t.watch(order, signal.ExpiresAt)
	return report
}

// conversionRate returns the USDJPY bid for JPY-quoted pairs, falling back
// to the configured rate when no quote is available.
func (t *Trader) conversionRate(ctx context.Context, inst types.Instrument) float64 {
	if !strategy.IsJPYPair(inst) {
		return 0
	}
	q, err := t.Terminal.Quote(ctx, t.settings.JPYRateSymbol)
	if err != nil || q.Bid <= 0 {
		log.Printf("⚠️  %s quote unavailable (%v), using fallback %.3f\n", t.settings.JPYRateSymbol, err, t.settings.FallbackJPYBid)
		return t.settings.FallbackJPYBid
	}
	return q.Bid
}

// watch starts at most one watcher per order ID.
func (t *Trader) watch(order broker.Order, expiry time.Time) {
	t.mu.Lock()
	if _, ok := t.watching[order.ID]; ok || t.watchCtx.Err() != nil {
		t.mu.Unlock()
		return
	}
	t.watching[order.ID] = struct{}{}
	t.watchers.Add(1)
	t.mu.Unlock()

	ctx := t.watchCtx
	w := monitoring.NewWatcher(t.Terminal, t.settings.MonitorInterval)
	w.Now = t.Now

	go func() {
		defer t.watchers.Done()
		defer func() {
			t.mu.Lock()
			delete(t.watching, order.ID)
			t.mu.Unlock()
		}()
		res, err := w.Watch(ctx, order, expiry)
		if err != nil {
			return
		}
		t.History.Record(res)
		if res.Status == monitoring.StatusExpired {
			t.Risk.RecordOrderCancelled(order.Symbol)
			t.notify(ctx, notifications.Message{
				Level:  notifications.LevelInfo,
				Title:  "Order cancelled",
				Body:   fmt.Sprintf("%s @ %g expired unfilled", order.Direction.Label(), order.Price),
				Symbol: order.Symbol,
			})
		}
		if datafeed.Enabled() {
			if err := datafeed.UpdateOrderStatus(ctx, order.ID, string(res.Status)); err != nil {
				log.Printf("⚠️  update order %s: %v\n", order.ID, err)
			}
		}
	}()
}

// reconcile syncs open order counts with the terminal and books positions
// that closed since the last pass.
func (t *Trader) reconcile(ctx context.Context) error {
	positions, err := t.Terminal.Positions(ctx)
	if err != nil {
		return fmt.Errorf("positions: %w", err)
	}
	pending, err := t.Terminal.PendingOrders(ctx, "")
	if err != nil {
		return fmt.Errorf("pending orders: %w", err)
	}

	counts := make(map[string]int)
	current := make(map[string]broker.Position, len(positions))
	for _, p := range positions {
		counts[p.Symbol]++
		current[p.Ticket] = p
	}
	for _, o := range pending {
		counts[o.Symbol]++
	}

	t.mu.Lock()
	previous := t.positions
	t.positions = current
	t.mu.Unlock()

	for ticket, p := range previous {
		if _, open := current[ticket]; open {
			continue
		}
		outcome := t.closedOutcome(ctx, p)
		t.Risk.LogTradeResult(p.Symbol, outcome)
		log.Printf("🏁 %s %s closed: %s\n", p.Symbol, p.Direction.Label(), outcome)
	}
	t.Risk.SyncOpen(counts)
	return nil
}

// closedOutcome infers win or loss from where price sits relative to entry.
func (t *Trader) closedOutcome(ctx context.Context, p broker.Position) types.Outcome {
	q, err := t.Terminal.Quote(ctx, p.Symbol)
	if err != nil {
		return types.OutcomeOpen
	}
	if p.Direction == types.DirectionSell {
		if q.Ask <= p.EntryPrice {
			return types.OutcomeWin
		}
		return types.OutcomeLoss
	}
	if q.Bid >= p.EntryPrice {
		return types.OutcomeWin
	}
	return types.OutcomeLoss
}

// Run polls until ctx is cancelled. A pass that cannot reach the terminal
// waits ReconnectDelay instead of PollInterval.
func (t *Trader) Run(ctx context.Context) error {
	t.mu.Lock()
	t.running = true
	t.startedAt = t.Now()
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
		log.Println("🔴 Live trading stopped")
	}()

	log.Printf("🟢 Live trading started: %v (%s mode)\n", t.Symbols(), t.settings.Params.Mode)
	for {
		wait := t.settings.PollInterval
		reports, err := t.RunOnce(ctx)
		if err != nil {
			log.Printf("❌ terminal unavailable: %v, retrying in %s\n", err, t.settings.ReconnectDelay)
			wait = t.settings.ReconnectDelay
		}
		for _, r := range reports {
			if r.Action == ActionPlaced {
				log.Printf("📤 %s\n", r)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

type Status struct {
	Running   bool                    `json:"running"`
	Symbols   []string                `json:"symbols"`
	StartedAt time.Time               `json:"started_at,omitempty"`
	LastRun   time.Time               `json:"last_run,omitempty"`
	Placed    map[string]string       `json:"placed"`
	Orders    monitoring.HistoryStats `json:"orders"`
	Risk      risk.Report             `json:"risk"`
}

// String is the plain-text status sent in reply to chat commands.
func (s Status) String() string {
	var b strings.Builder
	state := "stopped"
	if s.Running {
		state = "running since " + s.StartedAt.Format("2006-01-02 15:04")
	}
	fmt.Fprintf(&b, "Live: %s\n", state)
	fmt.Fprintf(&b, "Symbols: %s\n", strings.Join(s.Symbols, ", "))

	symbols := make([]string, 0, len(s.Placed))
	for symbol := range s.Placed {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		fmt.Fprintf(&b, "Placed %s on %s\n", symbol, s.Placed[symbol])
	}
	fmt.Fprintf(&b, "Orders: %d watched, %d filled, %d expired\n", s.Orders.Total, s.Orders.Filled, s.Orders.Expired)
	fmt.Fprintf(&b, "Daily loss: %.1fR of %.1fR (%s)", s.Risk.DailyLossR, s.Risk.MaxDailyLossR, s.Risk.HealthStatus)
	return b.String()
}

func (t *Trader) Status() Status {
	t.mu.Lock()
	placed := make(map[string]string, len(t.placed))
	for k, v := range t.placed {
		placed[k] = v
	}
	st := Status{
		Running:   t.running,
		Symbols:   append([]string(nil), t.symbols...),
		StartedAt: t.startedAt,
		LastRun:   t.lastRun,
		Placed:    placed,
	}
	t.mu.Unlock()

	st.Orders = t.History.Stats()
	st.Risk = t.Risk.GenerateRiskReport()
	return st
}

// Wait blocks until every order watcher has returned.
func (t *Trader) Wait() {
	t.watchers.Wait()
}

// Watching returns the IDs of orders still being watched.
func (t *Trader) Watching() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.watching))
	for id := range t.watching {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stops the order watchers and waits for them. Orders they were
// watching stay at the broker and are picked up again by the next trader.
func (t *Trader) Close() {
	t.stopWatch()
	t.watchers.Wait()
}

func (t *Trader) placedOn(symbol string, day time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.placed[symbol] == day.Format("2006-01-02")
}

func (t *Trader) markPlaced(symbol string, day time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.placed[symbol] = day.Format("2006-01-02")
}

func (t *Trader) notify(ctx context.Context, msg notifications.Message) {
	if err := t.Notifier.Notify(ctx, msg); err != nil {
		log.Printf("⚠️  notify: %v\n", err)
	}
}
