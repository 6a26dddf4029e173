package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fazecat/mogulfx/Internal/types"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Strategy      StrategyConfig              `yaml:"strategy"`
	Risk          RiskConfig                  `yaml:"risk"`
	Live          LiveConfig                  `yaml:"live"`
	Protection    ProtectionConfig            `yaml:"protection"`
	Simulation    SimulationConfig            `yaml:"simulation"`
	Broker        BrokerConfig                `yaml:"broker"`
	Notifications NotificationConfig          `yaml:"notifications"`
	Instruments   map[string]types.Instrument `yaml:"instruments"`
	PsychLevel    PsychLevelConfig            `yaml:"psych_level"`
	RangeBreach   RangeBreachConfig           `yaml:"range_breach"`
	path          string
}

type StrategyConfig struct {
	AnchorTime        string  `yaml:"anchor_time"`
	Timezone          string  `yaml:"timezone"`
	Timeframe         string  `yaml:"timeframe"`
	InvalidationHours float64 `yaml:"invalidation_hours"`
	RewardMultiple    float64 `yaml:"reward_multiple"`
	Mode              string  `yaml:"mode"`
	PricePrecision    int32   `yaml:"price_precision"`
}

type RiskConfig struct {
	RiskAmountUSD  float64 `yaml:"risk_amount_usd"`
	MinLot         float64 `yaml:"min_lot"`
	MaxLot         float64 `yaml:"max_lot"`
	LotPrecision   int32   `yaml:"lot_precision"`
	MaxOpenOrders  int     `yaml:"max_open_orders"`
	MaxDailyLossR  float64 `yaml:"max_daily_loss_r"`
	JPYRateSymbol  string  `yaml:"jpy_rate_symbol"`
	FallbackJPYBid float64 `yaml:"fallback_jpy_bid"`
}

type LiveConfig struct {
	Symbols               []string `yaml:"symbols"`
	Mode                  string   `yaml:"mode"`
	PollIntervalSeconds   int      `yaml:"poll_interval_seconds"`
	ReconnectDelaySeconds int      `yaml:"reconnect_delay_seconds"`
	OrderMonitorSeconds   int      `yaml:"order_monitor_seconds"`
	LookbackCandles       int      `yaml:"lookback_candles"`
	OrderComment          string   `yaml:"order_comment"`
	Magic                 int      `yaml:"magic"`
}

type ProtectionConfig struct {
	Timeframe       string  `yaml:"timeframe"`
	LookbackCandles int     `yaml:"lookback_candles"`
	RewardMultiple  float64 `yaml:"reward_multiple"`
	IntervalSeconds int     `yaml:"interval_seconds"`
}

type SimulationConfig struct {
	InitialBalance float64 `yaml:"initial_balance"`
	RewardPerWin   float64 `yaml:"reward_per_win"`
	LossPerTrade   float64 `yaml:"loss_per_trade"`
}

type BrokerConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	DataFeed string `yaml:"data_feed"`
	CSVDir   string `yaml:"csv_dir"`
}

type NotificationConfig struct {
	Channels struct {
		Console  bool `yaml:"console"`
		Telegram bool `yaml:"telegram"`
	} `yaml:"channels"`
}

type PsychLevelConfig struct {
	SessionHour     int     `yaml:"session_hour"`
	TriggerPips     float64 `yaml:"trigger_pips"`
	StopLossPips    float64 `yaml:"stop_loss_pips"`
	TakeProfitPips  float64 `yaml:"take_profit_pips"`
	RiskPercent     float64 `yaml:"risk_percent"`
	StartingBalance float64 `yaml:"starting_balance"`
}

type RangeBreachConfig struct {
	RangeStart string `yaml:"range_start"`
	RangeHours int    `yaml:"range_hours"`
	WatchStart string `yaml:"watch_start"`
	WatchHours int    `yaml:"watch_hours"`
}

// Defaults mirrors the values the strategy was tuned with.
func Defaults() *Config {
	cfg := &Config{
		Strategy: StrategyConfig{
			AnchorTime:        "09:25",
			Timezone:          "America/New_York",
			Timeframe:         "5Min",
			InvalidationHours: 6,
			RewardMultiple:    4,
			Mode:              "retest",
			PricePrecision:    5,
		},
		Risk: RiskConfig{
			RiskAmountUSD: 150,
			MinLot:        0.01,
			MaxLot:        100,
			LotPrecision:  2,
			MaxOpenOrders: 5,
			MaxDailyLossR: 3,
			JPYRateSymbol: "USDJPY",
		},
		Live: LiveConfig{
			Mode:                  "confirmation",
			PollIntervalSeconds:   10,
			ReconnectDelaySeconds: 5,
			OrderMonitorSeconds:   60,
			LookbackCandles:       288,
			OrderComment:          "9:25 AM Strategy",
			Magic:                 234000,
		},
		Protection: ProtectionConfig{
			Timeframe:       "1Hour",
			LookbackCandles: 24,
			RewardMultiple:  3,
			IntervalSeconds: 60,
		},
		Simulation: SimulationConfig{
			InitialBalance: 10000,
			RewardPerWin:   2000,
			LossPerTrade:   500,
		},
		Broker: BrokerConfig{
			Provider: "paper",
			BaseURL:  "https://paper-api.alpaca.markets",
		},
		PsychLevel: PsychLevelConfig{
			SessionHour:     8,
			TriggerPips:     15,
			StopLossPips:    10,
			TakeProfitPips:  50,
			RiskPercent:     5,
			StartingBalance: 1000,
		},
		RangeBreach: RangeBreachConfig{
			RangeStart: "05:00",
			RangeHours: 3,
			WatchStart: "09:00",
			WatchHours: 8,
		},
		Instruments: map[string]types.Instrument{},
	}
	cfg.Notifications.Channels.Console = true
	return cfg
}

func LoadConfig() (*Config, error) {
	// Resolve path relative to this file first
	_, filePath, _, ok := runtime.Caller(0)
	var basePath string
	if ok {
		basePath = filepath.Dir(filePath)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	possiblePaths := []string{}
	if env := os.Getenv("MOGULFX_CONFIG"); env != "" {
		possiblePaths = append(possiblePaths, env)
	}
	if basePath != "" {
		possiblePaths = append(possiblePaths, filepath.Join(basePath, "config.yaml"))
	}
	possiblePaths = append(possiblePaths,
		filepath.Join(cwd, "Internal", "utils", "config", "config.yaml"),
		"Internal/utils/config/config.yaml",
		"config.yaml",
	)

	var lastErr error
	for _, path := range possiblePaths {
		cfg, err := LoadConfigFrom(path)
		if err == nil {
			return cfg, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// LoadConfigFrom reads a single file on top of Defaults.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.path = path
	return cfg, nil
}

func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	for symbol, inst := range cfg.Instruments {
		inst.Symbol = symbol
		cfg.Instruments[symbol] = inst
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var issues []string
	if c.Strategy.RewardMultiple <= 0 {
		issues = append(issues, "strategy.reward_multiple must be > 0")
	}
	if c.Strategy.InvalidationHours <= 0 {
		issues = append(issues, "strategy.invalidation_hours must be > 0")
	}
	if _, err := time.LoadLocation(c.Strategy.Timezone); err != nil {
		issues = append(issues, fmt.Sprintf("strategy.timezone: %v", err))
	}
	if !validMode(c.Strategy.Mode) {
		issues = append(issues, fmt.Sprintf("strategy.mode %q must be retest or confirmation", c.Strategy.Mode))
	}
	if !validMode(c.Live.Mode) {
		issues = append(issues, fmt.Sprintf("live.mode %q must be retest or confirmation", c.Live.Mode))
	}
	if c.Risk.RiskAmountUSD <= 0 {
		issues = append(issues, "risk.risk_amount_usd must be > 0")
	}
	if c.Risk.MinLot <= 0 || c.Risk.MaxLot < c.Risk.MinLot {
		issues = append(issues, "risk.min_lot/max_lot out of range")
	}
	for symbol, inst := range c.Instruments {
		if inst.Point <= 0 || inst.ContractSize <= 0 {
			issues = append(issues, fmt.Sprintf("instruments.%s needs point and contract_size", symbol))
		}
	}
	if len(issues) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(issues, "; "))
	}
	return nil
}

func validMode(mode string) bool {
	return mode == "retest" || mode == "confirmation"
}

// Path returns the file the config was loaded from, if any.
func (c *Config) Path() string {
	return c.path
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Strategy.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) Invalidation() time.Duration {
	return time.Duration(c.Strategy.InvalidationHours * float64(time.Hour))
}

func (c *Config) PollInterval() time.Duration {
	return seconds(c.Live.PollIntervalSeconds, 10)
}

func (c *Config) ReconnectDelay() time.Duration {
	return seconds(c.Live.ReconnectDelaySeconds, 5)
}

func (c *Config) OrderMonitorInterval() time.Duration {
	return seconds(c.Live.OrderMonitorSeconds, 60)
}

func (c *Config) ProtectionInterval() time.Duration {
	return seconds(c.Protection.IntervalSeconds, 60)
}

func seconds(v int, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

// Instrument returns the configured instrument, falling back to forex
// conventions inferred from the symbol name.
func (c *Config) Instrument(symbol string) (types.Instrument, bool) {
	if inst, ok := c.Instruments[symbol]; ok {
		inst.Symbol = symbol
		return inst, true
	}
	return InferInstrument(symbol), false
}

func InferInstrument(symbol string) types.Instrument {
	inst := types.Instrument{
		Symbol:       symbol,
		AssetClass:   types.AssetForex,
		Point:        0.00001,
		PipSize:      0.0001,
		ContractSize: 100000,
	}
	if len(symbol) >= 6 {
		inst.QuoteCurrency = strings.ToUpper(symbol[len(symbol)-3:])
	}
	if inst.QuoteCurrency == "JPY" {
		inst.Point = 0.001
		inst.PipSize = 0.01
	}
	return inst
}

func SaveConfig(cfg *Config) error {
	path := cfg.path
	if path == "" {
		path = "Internal/utils/config/config.yaml"
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
