package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fazecat/mogulfx/Internal/broker"
	datafeed "github.com/fazecat/mogulfx/Internal/database"
	"github.com/fazecat/mogulfx/Internal/export"
	"github.com/fazecat/mogulfx/Internal/handlers/live"
	"github.com/fazecat/mogulfx/Internal/strategy"
	"github.com/fazecat/mogulfx/Internal/strategy/metrics"
	"github.com/fazecat/mogulfx/Internal/types"
	"github.com/fazecat/mogulfx/Internal/utils/config"
	"github.com/fazecat/mogulfx/Internal/utils/formatting"
)

type API struct {
	Config     *config.Config
	Feed       broker.HistoryFeed
	Live       *live.Controller
	JWTManager *JWTManager
	// BaseContext outlives single requests; the live runner is started on it.
	BaseContext context.Context
}

func (api *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":   "healthy",
		"database": datafeed.Enabled(),
	}
	if datafeed.Enabled() {
		if err := datafeed.HealthCheck(); err != nil {
			status["status"] = "degraded"
			status["database_error"] = err.Error()
		}
	}
	WriteJSON(w, http.StatusOK, status)
}

type tokenRequest struct {
	Operator string   `json:"operator"`
	Scopes   []string `json:"scopes"`
}

func (api *API) HandleGenerateToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	operator := strings.TrimSpace(req.Operator)
	if operator == "" {
		WriteError(w, http.StatusBadRequest, "operator is required")
		return
	}
	scopes, err := NormalizeScopes(req.Scopes)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !api.JWTManager.CanGrant(scopes, r.Header.Get(AdminKeyHeader)) {
		log.Printf("Refused live token for %s", operator)
		WriteError(w, http.StatusForbidden, "live scope requires a valid "+AdminKeyHeader)
		return
	}

	token, expires, err := api.JWTManager.Issue(operator, scopes)
	if err != nil {
		log.Printf("Error generating token: %v", err)
		WriteError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"scopes":     scopes,
		"expires_at": expires.UTC().Format(time.RFC3339),
	})
}

func (api *API) HandleLotSize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := strings.ToUpper(strings.TrimSpace(q.Get("symbol")))
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	entry, err1 := strconv.ParseFloat(q.Get("entry"), 64)
	stopLoss, err2 := strconv.ParseFloat(q.Get("sl"), 64)
	if err1 != nil || err2 != nil {
		WriteError(w, http.StatusBadRequest, "entry and sl must be numbers")
		return
	}

	riskUSD := api.Config.Risk.RiskAmountUSD
	if v := q.Get("risk"); v != "" {
		if riskUSD, err1 = strconv.ParseFloat(v, 64); err1 != nil {
			WriteError(w, http.StatusBadRequest, "risk must be a number")
			return
		}
	}
	rate := api.Config.Risk.FallbackJPYBid
	if v := q.Get("rate"); v != "" {
		if rate, err1 = strconv.ParseFloat(v, 64); err1 != nil {
			WriteError(w, http.StatusBadRequest, "rate must be a number")
			return
		}
	}

	inst, _ := api.Config.Instrument(symbol)
	limits := strategy.LotLimits{
		Min:       api.Config.Risk.MinLot,
		Max:       api.Config.Risk.MaxLot,
		Precision: api.Config.Risk.LotPrecision,
	}
	lots, err := strategy.CalculateLotSize(inst, entry, stopLoss, riskUSD, rate, limits)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":   symbol,
		"entry":    entry,
		"sl":       stopLoss,
		"risk_usd": riskUSD,
		"lots":     lots,
	})
}

type backtestResponse struct {
	RunID        string              `json:"run_id,omitempty"`
	Symbol       string              `json:"symbol"`
	Mode         string              `json:"mode"`
	From         string              `json:"from"`
	To           string              `json:"to"`
	Summary      metrics.Summary     `json:"summary"`
	MaxDrawdown  float64             `json:"max_drawdown_pct"`
	FinalBalance float64             `json:"final_balance"`
	Rows         []types.BacktestRow `json:"rows"`
}

// HandleBacktest runs the anchor strategy over ?symbol=&from=&to= and stores
// the run when a database is configured.
func (api *API) HandleBacktest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := strings.ToUpper(strings.TrimSpace(q.Get("symbol")))
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	engineCfg, err := metrics.EngineConfigFrom(api.Config)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if m := q.Get("mode"); m != "" {
		mode, err := strategy.ParseMode(m)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		engineCfg.Params.Mode = mode
	}

	from, to, err := formatting.ParseDateRange(q.Get("from"), q.Get("to"), engineCfg.Location)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	engine := metrics.NewEngine(api.Feed, engineCfg)
	rows, err := engine.Run(r.Context(), symbol, from, to)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, broker.ErrNoData) || errors.Is(err, broker.ErrUnknownSymbol) {
			status = http.StatusNotFound
		}
		WriteError(w, status, err.Error())
		return
	}

	k := engineCfg.Params.RewardMultiple
	summary := metrics.Summarize(rows, k)
	curve := metrics.SimulateEquity(rows, metrics.SimulationParams{
		InitialBalance: api.Config.Simulation.InitialBalance,
		RewardPerWin:   api.Config.Simulation.RewardPerWin,
		LossPerTrade:   api.Config.Simulation.LossPerTrade,
	})

	resp := backtestResponse{
		Symbol:       symbol,
		Mode:         string(engineCfg.Params.Mode),
		From:         from.Format("2006-01-02"),
		To:           to.Format("2006-01-02"),
		Summary:      summary,
		MaxDrawdown:  metrics.MaxDrawdown(curve),
		FinalBalance: curve[len(curve)-1],
		Rows:         rows,
	}

	if datafeed.Enabled() {
		id, err := datafeed.SaveBacktestRun(r.Context(), datafeed.RunSummary{
			Symbol:   symbol,
			Mode:     resp.Mode,
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
			resp.RunID = id.String()
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}

func (api *API) loadRun(w http.ResponseWriter, r *http.Request) (string, []types.BacktestRow, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid run id")
		return "", nil, false
	}
	if !datafeed.Enabled() {
		WriteError(w, http.StatusServiceUnavailable, "Database not configured")
		return "", nil, false
	}

	run, rows, err := datafeed.LoadBacktestRun(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		WriteError(w, http.StatusNotFound, "Backtest run not found")
		return "", nil, false
	}
	if err != nil {
		log.Printf("Error loading backtest run %s: %v", id, err)
		WriteError(w, http.StatusInternalServerError, "Failed to load backtest run")
		return "", nil, false
	}
	return fmt.Sprintf("%s_%s_%s", run.Symbol, run.StartDate.Format("20060102"), run.EndDate.Format("20060102")), rows, true
}

func (api *API) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	name, rows, ok := api.loadRun(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"name":    name,
		"summary": metrics.Summarize(rows, api.Config.Strategy.RewardMultiple),
		"rows":    rows,
	})
}

func (api *API) HandleRunCSV(w http.ResponseWriter, r *http.Request) {
	name, rows, ok := api.loadRun(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".csv"))
	if err := export.WriteBacktestCSV(w, rows); err != nil {
		log.Printf("Error writing csv: %v", err)
	}
}

func (api *API) HandleLiveStart(w http.ResponseWriter, r *http.Request) {
	if api.Live == nil {
		WriteError(w, http.StatusServiceUnavailable, "Live trading not configured")
		return
	}
	ctx := api.BaseContext
	if ctx == nil {
		ctx = context.Background()
	}
	if err := api.Live.Start(ctx); err != nil {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	log.Printf("🟢 Live trading started by %s", Operator(r.Context()))
	WriteJSON(w, http.StatusOK, api.Live.Status())
}

func (api *API) HandleLiveStop(w http.ResponseWriter, r *http.Request) {
	if api.Live == nil {
		WriteError(w, http.StatusServiceUnavailable, "Live trading not configured")
		return
	}
	if err := api.Live.Stop(); err != nil {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	log.Printf("🔴 Live trading stopped by %s", Operator(r.Context()))
	WriteJSON(w, http.StatusOK, api.Live.Status())
}

func (api *API) HandleLiveStatus(w http.ResponseWriter, r *http.Request) {
	if api.Live == nil {
		WriteError(w, http.StatusServiceUnavailable, "Live trading not configured")
		return
	}
	WriteJSON(w, http.StatusOK, api.Live.Status())
}
