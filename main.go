package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fazecat/mogulfx/Internal/broker"
	datafeed "github.com/fazecat/mogulfx/Internal/database"
	"github.com/fazecat/mogulfx/Internal/handlers"
	"github.com/fazecat/mogulfx/Internal/handlers/live"
	"github.com/fazecat/mogulfx/Internal/handlers/monitoring"
	"github.com/fazecat/mogulfx/Internal/handlers/risk"
	"github.com/fazecat/mogulfx/Internal/notifications"
	"github.com/fazecat/mogulfx/Internal/strategy"
	"github.com/fazecat/mogulfx/Internal/types"
	"github.com/fazecat/mogulfx/Internal/utils/config"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := datafeed.InitDatabase(); err != nil {
		if errors.Is(err, datafeed.ErrDatabaseDisabled) {
			log.Println("Database not configured - runs and orders will not be stored")
		} else {
			log.Fatalf("Failed to connect to database: %v", err)
		}
	}
	defer datafeed.CloseDatabase()

	terminal, err := broker.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open broker: %v", err)
	}
	defer terminal.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier := notifications.FromConfig(cfg)
	riskMgr := risk.NewManager(cfg.Risk)
	riskMgr.RegisterAlertCallback(notifications.AlertHandler(notifier))
	log.Println("Risk Manager initialized")

	settings, err := live.SettingsFrom(cfg)
	if err != nil {
		log.Fatalf("Invalid live settings: %v", err)
	}
	trader := live.NewTrader(terminal, riskMgr, notifier, settings)
	trader.Resolve = func(symbol string) types.Instrument {
		inst, _ := cfg.Instrument(symbol)
		return inst
	}
	defer trader.Close()
	controller := live.NewController(trader)

	guard := monitoring.NewGuard(terminal, notifier)
	if tf := types.Timeframe(cfg.Protection.Timeframe); tf.Valid() {
		guard.Timeframe = tf
	}
	if cfg.Protection.LookbackCandles > 0 {
		guard.Lookback = cfg.Protection.LookbackCandles
	}
	if cfg.Protection.RewardMultiple > 0 {
		guard.RewardMultiple = cfg.Protection.RewardMultiple
	}
	guard.Precision = cfg.Strategy.PricePrecision
	guard.Interval = cfg.ProtectionInterval()

	if path := cfg.Path(); path != "" {
		err := config.Watch(ctx, path, func(updated *config.Config) {
			trader.SetSymbols(updated.Live.Symbols)
		})
		if err != nil {
			log.Printf("Config hot reload disabled: %v", err)
		}
	}

	for _, tg := range notifier.Telegrams() {
		go func(tg *notifications.Telegram) {
			if err := tg.Listen(ctx, func() string { return controller.Status().String() }); err != nil {
				log.Printf("Telegram listener stopped: %v", err)
			}
		}(tg)
	}

	app := handlers.NewApp(cfg, terminal, controller, riskMgr, guard)
	defer app.StopGuard()
	defer func() {
		if controller.Running() {
			controller.Stop()
		}
	}()

	printAnchorCountdown(cfg)

	for {
		if ctx.Err() != nil {
			fmt.Println("\nShutting down...")
			return
		}

		fmt.Println("\n--- MogulFX Menu ---")
		fmt.Println("1. Backtest")
		fmt.Println("2. Lot Size Calculator")
		fmt.Println("3. Live Trading")
		fmt.Println("4. Protection Guard (toggle)")
		fmt.Println("5. Order History")
		fmt.Println("6. Risk Manager Dashboard")
		fmt.Println("7. Configure Settings")
		fmt.Println("8. Exit")
		fmt.Print("Enter choice (1-8): ")

		line, err := app.In.ReadString('\n')
		if err != nil && errors.Is(err, io.EOF) && line == "" {
			return
		}
		choice, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			fmt.Println("Invalid input. Try again.")
			continue
		}

		switch choice {
		case 1:
			app.HandleBacktestMenu(ctx)
		case 2:
			app.HandleLotSize()
		case 3:
			app.HandleLiveMenu(ctx)
		case 4:
			app.HandleProtectionGuard(ctx)
		case 5:
			app.HandleOrderHistory(ctx)
		case 6:
			app.HandleRiskReport()
		case 7:
			if err := config.ConfigureFrom(cfg, app.In); err != nil {
				fmt.Printf("❌ %v\n", err)
			}
			trader.SetSymbols(cfg.Live.Symbols)
		case 8:
			fmt.Println("Goodbye!")
			return
		default:
			fmt.Println("Invalid choice. Try again.")
		}
	}
}

func printAnchorCountdown(cfg *config.Config) {
	clock, err := strategy.ParseClock(cfg.Strategy.AnchorTime)
	if err != nil {
		return
	}
	loc := cfg.Location()
	if wait, ok := strategy.TimeUntilAnchor(time.Now(), clock, loc); ok {
		fmt.Printf("⏰ Next %s anchor candle in %s\n", clock, wait.Round(time.Minute))
	} else {
		fmt.Printf("⏰ Today's %s anchor candle has formed\n", clock)
	}
}
