package config

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ConfigureInteractive allows users to interactively configure the system
func ConfigureInteractive(cfg *Config) error {
	return configure(cfg, bufio.NewReader(os.Stdin), SaveConfig)
}

// ConfigureFrom runs the configuration menu on an existing reader so it can
// share stdin with the main menu.
func ConfigureFrom(cfg *Config, reader *bufio.Reader) error {
	return configure(cfg, reader, SaveConfig)
}

func configure(cfg *Config, reader *bufio.Reader, save func(*Config) error) error {
	for {
		fmt.Println("\n⚙️  Configuration Menu:")
		fmt.Println("1. View Current Configuration")
		fmt.Println("2. Configure Strategy")
		fmt.Println("3. Configure Risk")
		fmt.Println("4. Configure Live Symbols")
		fmt.Println("5. Save & Exit")
		fmt.Print("Select option: ")

		choice, err := reader.ReadString('\n')
		if err != nil && choice == "" {
			return err
		}
		choice = strings.TrimSpace(choice)

		switch choice {
		case "1":
			DisplayConfiguration(cfg)
		case "2":
			configureStrategy(cfg, reader)
		case "3":
			configureRisk(cfg, reader)
		case "4":
			configureSymbols(cfg, reader)
		case "5":
			if err := cfg.Validate(); err != nil {
				fmt.Printf("❌ %v\n", err)
				continue
			}
			if err := save(cfg); err != nil {
				fmt.Printf("❌ Error saving config: %v\n", err)
				continue
			}
			fmt.Println("✅ Configuration saved successfully!")
			return nil
		default:
			fmt.Println("❌ Invalid option")
		}
	}
}

// DisplayConfiguration shows current configuration
func DisplayConfiguration(cfg *Config) {
	fmt.Println("\n📋 Current Configuration:")

	fmt.Println("\n=== Strategy ===")
	fmt.Printf("Anchor Candle: %s %s (%s)\n", cfg.Strategy.AnchorTime, cfg.Strategy.Timezone, cfg.Strategy.Timeframe)
	fmt.Printf("Mode: %s | Live Mode: %s\n", cfg.Strategy.Mode, cfg.Live.Mode)
	fmt.Printf("Invalidation Window: %.1fh\n", cfg.Strategy.InvalidationHours)
	fmt.Printf("Reward Multiple: %.1fR\n", cfg.Strategy.RewardMultiple)

	fmt.Println("\n=== Risk ===")
	fmt.Printf("Risk Per Trade: $%.2f\n", cfg.Risk.RiskAmountUSD)
	fmt.Printf("Lot Range: %.2f - %.2f\n", cfg.Risk.MinLot, cfg.Risk.MaxLot)
	fmt.Printf("Max Open Orders: %d\n", cfg.Risk.MaxOpenOrders)
	fmt.Printf("Max Daily Loss: %.1fR\n", cfg.Risk.MaxDailyLossR)

	fmt.Println("\n=== Live ===")
	fmt.Printf("Symbols: %s\n", strings.Join(cfg.Live.Symbols, ", "))
	fmt.Printf("Poll Interval: %s\n", cfg.PollInterval())
	fmt.Printf("Broker: %s\n", cfg.Broker.Provider)

	if len(cfg.Instruments) > 0 {
		fmt.Println("\n=== Instruments ===")
		names := make([]string, 0, len(cfg.Instruments))
		for name := range cfg.Instruments {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			inst := cfg.Instruments[name]
			fmt.Printf("  • %-8s point=%g pip=%g contract=%g quote=%s\n",
				name, inst.Point, inst.PipSize, inst.ContractSize, inst.QuoteCurrency)
		}
	}
}

func configureStrategy(cfg *Config, reader *bufio.Reader) {
	fmt.Println("\n📈 Configure Strategy:")

	fmt.Printf("Current anchor time: %s\n", cfg.Strategy.AnchorTime)
	fmt.Print("New anchor time (HH:MM): ")
	if input := readLine(reader); input != "" {
		cfg.Strategy.AnchorTime = input
	}

	fmt.Printf("Current mode: %s\n", cfg.Strategy.Mode)
	fmt.Print("New mode (retest/confirmation): ")
	if input := readLine(reader); validMode(input) {
		cfg.Strategy.Mode = input
	}

	promptFloat(reader, "invalidation hours", &cfg.Strategy.InvalidationHours)
	promptFloat(reader, "reward multiple", &cfg.Strategy.RewardMultiple)
	fmt.Println("✅ Strategy updated")
}

func configureRisk(cfg *Config, reader *bufio.Reader) {
	fmt.Println("\n🛡️  Configure Risk:")
	promptFloat(reader, "risk per trade ($)", &cfg.Risk.RiskAmountUSD)
	promptFloat(reader, "min lot", &cfg.Risk.MinLot)
	promptFloat(reader, "max lot", &cfg.Risk.MaxLot)
	promptFloat(reader, "max daily loss (R)", &cfg.Risk.MaxDailyLossR)

	fmt.Printf("Current max open orders: %d\n", cfg.Risk.MaxOpenOrders)
	fmt.Print("New max open orders: ")
	if val, err := strconv.Atoi(readLine(reader)); err == nil && val > 0 {
		cfg.Risk.MaxOpenOrders = val
	}
	fmt.Println("✅ Risk updated")
}

func configureSymbols(cfg *Config, reader *bufio.Reader) {
	fmt.Printf("\nCurrent symbols: %s\n", strings.Join(cfg.Live.Symbols, ", "))
	fmt.Print("New symbols (comma-separated): ")
	input := readLine(reader)
	if input == "" {
		fmt.Println("No changes made")
		return
	}
	cfg.Live.Symbols = SplitSymbols(input)
	fmt.Printf("✅ Symbols: %s\n", strings.Join(cfg.Live.Symbols, ", "))
}

// SplitSymbols parses a comma separated symbol list, trimming blanks.
func SplitSymbols(input string) []string {
	var symbols []string
	for _, s := range strings.Split(input, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

func promptFloat(reader *bufio.Reader, label string, target *float64) {
	fmt.Printf("Current %s: %.2f\n", label, *target)
	fmt.Printf("New %s: ", label)
	if val, err := strconv.ParseFloat(readLine(reader), 64); err == nil {
		*target = val
	}
}

func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}
