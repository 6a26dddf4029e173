package broker

import (
	"fmt"
	"log"

	datafeed "github.com/fazecat/mogulfx/Internal/database"
	"github.com/fazecat/mogulfx/Internal/utils/config"
)

// Open builds the terminal named by broker.provider.
func Open(cfg *config.Config) (Terminal, error) {
	switch cfg.Broker.Provider {
	case "alpaca":
		t, err := NewAlpacaTerminalFromEnv(cfg.Broker.BaseURL, cfg.Broker.DataFeed, cfg.Instrument)
		if err != nil {
			return nil, err
		}
		log.Printf("🔌 Connected to Alpaca (%s)\n", cfg.Broker.BaseURL)
		return t, nil
	case "paper", "":
		var feed HistoryFeed
		if cfg.Broker.CSVDir != "" {
			feed = datafeed.NewCSVFeed(cfg.Broker.CSVDir)
		}
		log.Println("🧪 Using paper terminal")
		return NewPaperTerminal(feed), nil
	case "csv":
		if cfg.Broker.CSVDir == "" {
			return nil, fmt.Errorf("broker.csv_dir is required for the csv provider")
		}
		return NewPaperTerminal(datafeed.NewCSVFeed(cfg.Broker.CSVDir)), nil
	default:
		return nil, fmt.Errorf("unknown broker provider %q", cfg.Broker.Provider)
	}
}

// OpenFeed returns a history-only source for backtests.
func OpenFeed(cfg *config.Config) (HistoryFeed, error) {
	if cfg.Broker.Provider == "csv" || (cfg.Broker.Provider == "paper" && cfg.Broker.CSVDir != "") {
		return datafeed.NewCSVFeed(cfg.Broker.CSVDir), nil
	}
	return Open(cfg)
}
