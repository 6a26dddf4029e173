package risk

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fazecat/mogulfx/Internal/strategy"
	"github.com/fazecat/mogulfx/Internal/types"
	"github.com/fazecat/mogulfx/Internal/utils/config"
	"github.com/fazecat/mogulfx/Internal/utils/formatting"
)

// Account-level risk controls for the live runner
type Manager struct {
	RiskAmountUSD float64
	Limits        strategy.LotLimits
	MaxOpenOrders int
	MaxDailyLossR float64

	// Daily loss in R, reset on the first check of a new day
	dailyLossR   float64
	dailyLossDay string
	lossMutex    sync.RWMutex

	openBySymbol   map[string]int
	positionsMutex sync.RWMutex

	riskEvents      []*Event
	riskEventsMutex sync.RWMutex

	alertCallbacks      []AlertCallback
	alertCallbacksMutex sync.RWMutex

	Now func() time.Time
}

// represents a significant risk event
type Event struct {
	Timestamp time.Time
	EventType string // "MAX_DAILY_LOSS_HIT", "MAX_ORDERS_HIT", "LOT_SIZE_REJECTED"
	Severity  string // "CRITICAL", "WARNING", "INFO"
	Symbol    string
	Details   string
	DailyLoss float64
}

type AlertCallback func(*Alert)

type Alert struct {
	Level     string // "INFO", "WARNING", "CRITICAL"
	Title     string
	Message   string
	Timestamp time.Time
	Symbol    string
	Data      map[string]interface{}
}

func NewManager(cfg config.RiskConfig) *Manager {
	limits := strategy.DefaultLotLimits()
	if cfg.MinLot > 0 {
		limits.Min = cfg.MinLot
	}
	if cfg.MaxLot > 0 {
		limits.Max = cfg.MaxLot
	}
	if cfg.LotPrecision > 0 {
		limits.Precision = cfg.LotPrecision
	}
	return &Manager{
		RiskAmountUSD:  cfg.RiskAmountUSD,
		Limits:         limits,
		MaxOpenOrders:  cfg.MaxOpenOrders,
		MaxDailyLossR:  cfg.MaxDailyLossR,
		openBySymbol:   make(map[string]int),
		riskEvents:     make([]*Event, 0),
		alertCallbacks: make([]AlertCallback, 0),
		Now:            time.Now,
	}
}

// ============================================================================
// POSITION SIZING
// ============================================================================

// SizeOrder returns the lot size that risks RiskAmountUSD between entry and
// stop. conversionRate is only used for JPY-quoted pairs.
func (rm *Manager) SizeOrder(inst types.Instrument, entry, stopLoss, conversionRate float64) (float64, error) {
	lots, err := strategy.CalculateLotSize(inst, entry, stopLoss, rm.RiskAmountUSD, conversionRate, rm.Limits)
	if err != nil {
		rm.recordRiskEvent(&Event{
			Timestamp: rm.Now(),
			EventType: "LOT_SIZE_REJECTED",
			Severity:  "WARNING",
			Symbol:    inst.Symbol,
			Details:   err.Error(),
		})
		return 0, err
	}
	log.Printf("📐 %s: %.2f lots for $%.2f risk (entry %g, SL %g)\n", inst.Symbol, lots, rm.RiskAmountUSD, entry, stopLoss)
	return lots, nil
}

// ============================================================================
// DAILY LOSS TRACKING
// ============================================================================

func (rm *Manager) resetIfNewDay() {
	today := rm.Now().Format("2006-01-02")
	if rm.dailyLossDay != today {
		if rm.dailyLossDay != "" {
			log.Printf("📊 Daily loss reset (was %.1fR)\n", rm.dailyLossR)
		}
		rm.dailyLossR = 0
		rm.dailyLossDay = today
	}
}

// LogTradeResult books a closed trade. Only losses move the daily counter.
func (rm *Manager) LogTradeResult(symbol string, outcome types.Outcome) {
	rm.positionsMutex.Lock()
	if rm.openBySymbol[symbol] > 0 {
		rm.openBySymbol[symbol]--
	}
	rm.positionsMutex.Unlock()

	if outcome != types.OutcomeLoss {
		return
	}

	rm.lossMutex.Lock()
	rm.resetIfNewDay()
	rm.dailyLossR++
	loss := rm.dailyLossR
	rm.lossMutex.Unlock()

	log.Printf("📉 %s stopped out. Daily loss: %.1fR\n", symbol, loss)

	if rm.MaxDailyLossR > 0 && loss >= rm.MaxDailyLossR {
		rm.recordRiskEvent(&Event{
			Timestamp: rm.Now(),
			EventType: "MAX_DAILY_LOSS_HIT",
			Severity:  "CRITICAL",
			Symbol:    symbol,
			Details:   fmt.Sprintf("Daily loss %.1fR hit maximum of %.1fR", loss, rm.MaxDailyLossR),
			DailyLoss: loss,
		})
		rm.SendAlert(&Alert{
			Level:   "CRITICAL",
			Title:   "⛔ DAILY LOSS LIMIT HIT",
			Message: fmt.Sprintf("Daily loss has reached %.1fR (%.1fR limit). No new orders today.", loss, rm.MaxDailyLossR),
			Symbol:  symbol,
			Data:    map[string]interface{}{"dailyLossR": loss},
		})
	}
}

func (rm *Manager) GetDailyLossR() float64 {
	rm.lossMutex.Lock()
	defer rm.lossMutex.Unlock()
	rm.resetIfNewDay()
	return rm.dailyLossR
}

func (rm *Manager) IsDailyLossLimitHit() bool {
	return rm.MaxDailyLossR > 0 && rm.GetDailyLossR() >= rm.MaxDailyLossR
}

// ============================================================================
// OPEN ORDER TRACKING
// ============================================================================

func (rm *Manager) RecordOrderPlaced(symbol string) {
	rm.positionsMutex.Lock()
	defer rm.positionsMutex.Unlock()
	rm.openBySymbol[symbol]++
}

// RecordOrderCancelled releases the slot of an order that never filled.
func (rm *Manager) RecordOrderCancelled(symbol string) {
	rm.positionsMutex.Lock()
	defer rm.positionsMutex.Unlock()
	if rm.openBySymbol[symbol] > 0 {
		rm.openBySymbol[symbol]--
	}
}

// SyncOpen replaces the tracked counts with what the terminal reports.
func (rm *Manager) SyncOpen(counts map[string]int) {
	rm.positionsMutex.Lock()
	defer rm.positionsMutex.Unlock()
	rm.openBySymbol = make(map[string]int, len(counts))
	for symbol, n := range counts {
		rm.openBySymbol[symbol] = n
	}
}

func (rm *Manager) CountOpenOrders() int {
	rm.positionsMutex.RLock()
	defer rm.positionsMutex.RUnlock()

	count := 0
	for _, c := range rm.openBySymbol {
		count += c
	}
	return count
}

// CanPlaceOrder checks the open order cap and the daily loss limit.
func (rm *Manager) CanPlaceOrder(symbol string) ValidationResult {
	result := ValidationResult{
		Valid:   true,
		Errors:  []string{},
		Details: map[string]interface{}{},
	}

	open := rm.CountOpenOrders()
	result.Details["openOrders"] = open
	result.Details["maxOpenOrders"] = rm.MaxOpenOrders

	if rm.MaxOpenOrders > 0 && open >= rm.MaxOpenOrders {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf(
			"Cannot place order: %d/%d max open orders reached", open, rm.MaxOpenOrders))
		rm.recordRiskEvent(&Event{
			Timestamp: rm.Now(),
			EventType: "MAX_ORDERS_HIT",
			Severity:  "WARNING",
			Symbol:    symbol,
			Details:   result.Errors[len(result.Errors)-1],
		})
	}

	if rm.IsDailyLossLimitHit() {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf(
			"Cannot place order: daily loss limit (%.1fR) hit", rm.MaxDailyLossR))
	}

	return result
}

// ============================================================================
// RISK EVENTS & ALERTS
// ============================================================================

func (rm *Manager) recordRiskEvent(event *Event) {
	rm.riskEventsMutex.Lock()
	defer rm.riskEventsMutex.Unlock()
	rm.riskEvents = append(rm.riskEvents, event)
	log.Printf("🚨 Risk Event: [%s] %s - %s\n", event.Severity, event.EventType, event.Details)
}

// returns recent risk events
func (rm *Manager) GetRiskEvents(limit int) []*Event {
	rm.riskEventsMutex.RLock()
	defer rm.riskEventsMutex.RUnlock()

	events := rm.riskEvents
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return append([]*Event(nil), events...)
}

func (rm *Manager) RegisterAlertCallback(callback AlertCallback) {
	rm.alertCallbacksMutex.Lock()
	defer rm.alertCallbacksMutex.Unlock()
	rm.alertCallbacks = append(rm.alertCallbacks, callback)
}

// SendAlert sends an alert to all registered callbacks
func (rm *Manager) SendAlert(alert *Alert) {
	alert.Timestamp = rm.Now()

	rm.alertCallbacksMutex.RLock()
	callbacks := rm.alertCallbacks
	rm.alertCallbacksMutex.RUnlock()

	for _, callback := range callbacks {
		go callback(alert) // Non-blocking
	}
}

// ============================================================================
// RISK REPORT
// ============================================================================

func (rm *Manager) GenerateRiskReport() Report {
	lossR := rm.GetDailyLossR()
	open := rm.CountOpenOrders()

	report := Report{
		Timestamp:     rm.Now(),
		RiskAmountUSD: rm.RiskAmountUSD,
		OpenOrders:    open,
		MaxOpenOrders: rm.MaxOpenOrders,
		DailyLossR:    lossR,
		MaxDailyLossR: rm.MaxDailyLossR,
		HealthStatus:  "HEALTHY",
		Alerts:        []string{},
	}

	switch {
	case rm.MaxDailyLossR > 0 && lossR >= rm.MaxDailyLossR:
		report.HealthStatus = "CRITICAL - DAILY LOSS LIMIT HIT"
		report.Alerts = append(report.Alerts, "🛑 Daily loss limit reached. No new orders.")
	case rm.MaxDailyLossR > 0 && lossR >= rm.MaxDailyLossR*0.75:
		report.HealthStatus = "WARNING"
		report.Alerts = append(report.Alerts, fmt.Sprintf("⚠️  Daily loss at %.1fR of %.1fR", lossR, rm.MaxDailyLossR))
	}

	if rm.MaxOpenOrders > 0 && open >= rm.MaxOpenOrders {
		report.Alerts = append(report.Alerts, fmt.Sprintf("⚠️  Max open orders (%d/%d) reached", open, rm.MaxOpenOrders))
	}

	return report
}

// ============================================================================
// TYPES & STRUCTS
// ============================================================================

type ValidationResult struct {
	Valid   bool
	Errors  []string
	Details map[string]interface{}
}

type Report struct {
	Timestamp     time.Time
	RiskAmountUSD float64
	OpenOrders    int
	MaxOpenOrders int
	DailyLossR    float64
	MaxDailyLossR float64
	HealthStatus  string
	Alerts        []string
}

// prints a formatted risk report
func (r *Report) Print() {
	width := 70
	fmt.Println("\n" + formatting.Separator(width))
	fmt.Println("📊 RISK REPORT")
	fmt.Println(formatting.Separator(width))
	fmt.Printf("Risk per trade:        $%.2f\n", r.RiskAmountUSD)
	fmt.Printf("Open Orders:           %d/%d\n", r.OpenOrders, r.MaxOpenOrders)
	fmt.Printf("Daily Loss:            %.1fR (limit %.1fR)\n", r.DailyLossR, r.MaxDailyLossR)
	fmt.Printf("Status:                %s\n", r.HealthStatus)

	if len(r.Alerts) > 0 {
		fmt.Println("\nAlerts:")
		for _, alert := range r.Alerts {
			fmt.Printf("  %s\n", alert)
		}
	}
	fmt.Println(formatting.Separator(width) + "\n")
}
