package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fazecat/mogulfx/Internal/broker"
	datafeed "github.com/fazecat/mogulfx/Internal/database"
	"github.com/fazecat/mogulfx/Internal/handlers/live"
	"github.com/fazecat/mogulfx/Internal/handlers/risk"
	"github.com/fazecat/mogulfx/Internal/notifications"
	"github.com/fazecat/mogulfx/Internal/types"
	"github.com/fazecat/mogulfx/Internal/utils/config"
	"github.com/fazecat/mogulfx/cmd/api/internal"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../../.env")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := datafeed.InitDatabase(); err != nil {
		if errors.Is(err, datafeed.ErrDatabaseDisabled) {
			log.Println("Database not configured - backtest runs will not be stored")
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
	controller := live.NewController(trader)

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

	apiServer := &internal.API{
		Config:      cfg,
		Feed:        terminal,
		Live:        controller,
		JWTManager:  internal.NewJWTManager(),
		BaseContext: ctx,
	}

	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: internal.NewRouter(apiServer)}

	go func() {
		<-ctx.Done()
		if controller.Running() {
			controller.Stop()
		}
		trader.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Starting API server on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
