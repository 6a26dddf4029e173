package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fazecat/mogulfx/Internal/broker"
	"github.com/fazecat/mogulfx/Internal/handlers/live"
	"github.com/fazecat/mogulfx/Internal/handlers/risk"
	"github.com/fazecat/mogulfx/Internal/strategy"
	"github.com/fazecat/mogulfx/Internal/types"
	"github.com/fazecat/mogulfx/Internal/utils/config"
)

const testAdminKey = "ops-admin-key"

type decoded struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestServer(t *testing.T) (*httptest.Server, *API) {
	t.Helper()
	cfg := config.Defaults()
	loc, err := strategy.LoadLocation(cfg.Strategy.Timezone)
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	paper := broker.NewPaperTerminal(nil)
	start := time.Date(2024, 3, 5, 9, 25, 0, 0, loc)
	rows := [][4]float64{
		{1.1010, 1.1015, 1.0995, 1.1000},
		{1.1005, 1.1022, 1.1003, 1.1020},
		{1.1020, 1.1025, 1.1012, 1.1018},
		{1.1020, 1.1100, 1.1015, 1.1090},
	}
	var candles []types.Candle
	for i, r := range rows {
		candles = append(candles, types.Candle{Time: start.Add(time.Duration(i) * 5 * time.Minute), Open: r[0], High: r[1], Low: r[2], Close: r[3]})
	}
	paper.SetCandles("EURUSD", candles)

	settings, err := live.SettingsFrom(cfg)
	if err != nil {
		t.Fatal(err)
	}
	trader := live.NewTrader(paper, risk.NewManager(cfg.Risk), nil, settings)

	api := &API{
		Config:      cfg,
		Feed:        paper,
		Live:        live.NewController(trader),
		JWTManager:  NewJWTManagerWithSecret("test-secret").WithAdminKey(testAdminKey),
		BaseContext: context.Background(),
	}
	srv := httptest.NewServer(NewRouter(api))
	t.Cleanup(func() {
		api.Live.Stop()
		trader.Close()
		srv.Close()
	})
	return srv, api
}

func do(t *testing.T, method, url, token, body string) (int, decoded) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out decoded
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	status, body := do(t, http.MethodGet, srv.URL+"/health", "", "")
	if status != http.StatusOK || !body.Success {
		t.Errorf("health = %d %+v", status, body)
	}
}

func TestLotSize(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name     string
		query    string
		want     int
		wantLots float64
	}{
		{name: "eurusd", query: "symbol=EURUSD&entry=1.1015&sl=1.0995", want: http.StatusOK, wantLots: 0.75},
		{name: "custom risk", query: "symbol=eurusd&entry=1.1015&sl=1.0995&risk=300", want: http.StatusOK, wantLots: 1.5},
		{name: "jpy with rate", query: "symbol=USDJPY&entry=150.20&sl=150.00&rate=125", want: http.StatusOK, wantLots: 0.94},
		{name: "missing symbol", query: "entry=1&sl=0.9", want: http.StatusBadRequest},
		{name: "bad number", query: "symbol=EURUSD&entry=x&sl=1", want: http.StatusBadRequest},
		{name: "zero distance", query: "symbol=EURUSD&entry=1.1&sl=1.1", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, http.MethodGet, srv.URL+"/api/lot-size?"+tt.query, "", "")
			if status != tt.want {
				t.Fatalf("status = %d (%s), want %d", status, body.Error, tt.want)
			}
			if tt.want != http.StatusOK {
				return
			}
			var data struct {
				Lots float64 `json:"lots"`
			}
			json.Unmarshal(body.Data, &data)
			if data.Lots != tt.wantLots {
				t.Errorf("lots = %v, want %v", data.Lots, tt.wantLots)
			}
		})
	}
}

func TestBacktest(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := do(t, http.MethodGet, srv.URL+"/api/backtest?symbol=EURUSD&from=2024-03-04&to=2024-03-05", "", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d (%s)", status, body.Error)
	}
	var data backtestResponse
	if err := json.Unmarshal(body.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.RunID != "" {
		t.Errorf("run stored without a database: %s", data.RunID)
	}
	if len(data.Rows) != 1 || data.Rows[0].Outcome != types.OutcomeWin {
		t.Fatalf("rows = %+v", data.Rows)
	}
	if data.Summary.Wins != 1 || data.Summary.TotalR != 4 || data.FinalBalance != 12000 {
		t.Errorf("summary = %+v balance %v", data.Summary, data.FinalBalance)
	}

	for _, q := range []string{
		"from=2024-03-04&to=2024-03-05",
		"symbol=EURUSD&from=2024-03-06&to=2024-03-05",
		"symbol=EURUSD&from=2024-03-04&to=2024-03-05&mode=scalp",
	} {
		if status, _ := do(t, http.MethodGet, srv.URL+"/api/backtest?"+q, "", ""); status != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, status)
		}
	}
	if status, _ := do(t, http.MethodGet, srv.URL+"/api/backtest?symbol=GBPUSD&from=2024-03-04&to=2024-03-05", "", ""); status != http.StatusNotFound {
		t.Errorf("unknown symbol status = %d, want 404", status)
	}
}

func TestBacktestRuns(t *testing.T) {
	srv, _ := newTestServer(t)

	if status, _ := do(t, http.MethodGet, srv.URL+"/api/backtest/runs/not-a-uuid", "", ""); status != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", status)
	}
	id := "3f2b8c1e-5d4a-4b6e-9f0a-1c2d3e4f5a6b"
	if status, _ := do(t, http.MethodGet, srv.URL+"/api/backtest/runs/"+id+"/csv", "", ""); status != http.StatusServiceUnavailable {
		t.Errorf("no database status = %d, want 503", status)
	}
}

func TestLiveRequiresToken(t *testing.T) {
	srv, _ := newTestServer(t)

	if status, _ := do(t, http.MethodGet, srv.URL+"/api/live/status", "", ""); status != http.StatusUnauthorized {
		t.Errorf("status without token = %d, want 401", status)
	}
	if status, _ := do(t, http.MethodGet, srv.URL+"/api/live/status", "garbage", ""); status != http.StatusUnauthorized {
		t.Errorf("status with bad token = %d, want 401", status)
	}
}

func TestLiveStartStop(t *testing.T) {
	srv, api := newTestServer(t)

	tok := issue(t, srv.URL, `{"operator":"ops","scopes":["live"]}`, testAdminKey)

	if status, body := do(t, http.MethodPost, srv.URL+"/api/live/start", tok.Token, ""); status != http.StatusOK {
		t.Fatalf("start = %d (%s)", status, body.Error)
	}
	if !api.Live.Running() {
		t.Error("controller not running after start")
	}
	if status, _ := do(t, http.MethodPost, srv.URL+"/api/live/start", tok.Token, ""); status != http.StatusConflict {
		t.Errorf("second start = %d, want 409", status)
	}
	if status, _ := do(t, http.MethodPost, srv.URL+"/api/live/stop", tok.Token, ""); status != http.StatusOK {
		t.Errorf("stop = %d", status)
	}
	if status, _ := do(t, http.MethodPost, srv.URL+"/api/live/stop", tok.Token, ""); status != http.StatusConflict {
		t.Errorf("second stop = %d, want 409", status)
	}
}

func requestToken(t *testing.T, base, body, adminKey string) (int, decoded) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, base+"/api/token", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if adminKey != "" {
		req.Header.Set(AdminKeyHeader, adminKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out decoded
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func issue(t *testing.T, base, body, adminKey string) struct{ Token string } {
	t.Helper()
	status, resp := requestToken(t, base, body, adminKey)
	if status != http.StatusOK {
		t.Fatalf("token status = %d (%s)", status, resp.Error)
	}
	var tok struct{ Token string }
	if err := json.Unmarshal(resp.Data, &tok); err != nil || tok.Token == "" {
		t.Fatalf("token body = %s, err = %v", resp.Data, err)
	}
	return tok
}

func TestReadTokenCannotStart(t *testing.T) {
	srv, api := newTestServer(t)
	tok := issue(t, srv.URL, `{"operator":"viewer"}`, "")

	if status, _ := do(t, http.MethodGet, srv.URL+"/api/live/status", tok.Token, ""); status != http.StatusOK {
		t.Errorf("status with read token = %d, want 200", status)
	}
	if status, _ := do(t, http.MethodPost, srv.URL+"/api/live/start", tok.Token, ""); status != http.StatusForbidden {
		t.Errorf("start with read token = %d, want 403", status)
	}
	if api.Live.Running() {
		t.Error("read token started the runner")
	}
}

func TestLiveTokenNeedsAdminKey(t *testing.T) {
	srv, api := newTestServer(t)
	body := `{"operator":"mallory","scopes":["live"]}`

	tests := []struct {
		name string
		key  string
	}{
		{"no key", ""},
		{"wrong key", "guess"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := requestToken(t, srv.URL, body, tt.key)
			if status != http.StatusForbidden {
				t.Errorf("status = %d, want 403", status)
			}
			if len(resp.Data) != 0 && string(resp.Data) != "null" {
				t.Errorf("refused request returned data %s", resp.Data)
			}
		})
	}
	if api.Live.Running() {
		t.Error("runner started without an admin key")
	}

	unset := NewJWTManagerWithSecret("s")
	if unset.CanGrant([]string{ScopeLive}, "") || unset.CanGrant([]string{ScopeLive}, "anything") {
		t.Error("live granted with no admin key configured")
	}
	if !unset.CanGrant([]string{ScopeRead}, "") {
		t.Error("read should not need a key")
	}
}

func TestGenerateTokenValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"empty operator", `{}`},
		{"bad body", `not json`},
		{"unknown scope", `{"operator":"ops","scopes":["admin"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if status, _ := do(t, http.MethodPost, srv.URL+"/api/token", "", tt.body); status != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", status)
			}
		})
	}
}

func TestJWTRoundTrip(t *testing.T) {
	jm := NewJWTManagerWithSecret("s3cret")
	token, expires, err := jm.Issue("u1", []string{ScopeLive})
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(expires) < 23*time.Hour {
		t.Errorf("expires = %v, want ~24h ahead", expires)
	}

	claims, err := jm.Verify(token)
	if err != nil || claims.Operator != "u1" || claims.Issuer != "mogulfx-api" {
		t.Fatalf("claims = %+v, err = %v", claims, err)
	}
	if !claims.Allows(ScopeRead) || !claims.Allows(ScopeLive) {
		t.Errorf("live scope should allow read and live: %v", claims.Scopes)
	}

	if _, err := NewJWTManagerWithSecret("other").Verify(token); err == nil {
		t.Error("token verified with the wrong secret")
	}

	stale := NewJWTManagerWithSecret("s3cret")
	stale.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	old, _, err := stale.Issue("u1", []string{ScopeRead})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := jm.Verify(old); err == nil {
		t.Error("expired token verified")
	}
}

func TestNormalizeScopes(t *testing.T) {
	got, err := NormalizeScopes([]string{"live", "read", "live"})
	if err != nil || len(got) != 2 {
		t.Errorf("NormalizeScopes = %v, %v", got, err)
	}
	if got, _ := NormalizeScopes(nil); len(got) != 1 || got[0] != ScopeRead {
		t.Errorf("default scopes = %v", got)
	}
}
