package datafeed

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"

	database "github.com/fazecat/mogulfx/Internal/database/sqlc"
	_ "github.com/lib/pq"
)

var Queries *database.Queries
var DB *sql.DB

var ErrDatabaseDisabled = errors.New("database not configured")

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func ConfigFromEnv() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnvOrDefault("DB_HOST", "localhost"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: os.Getenv("DB_PASSWORD"), // Required - no default
		DBName:   getEnvOrDefault("DB_NAME", "mogulfx"),
		SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
	}
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// InitDatabase connects using DB_* variables. Without DB_PASSWORD the
// database is treated as disabled and ErrDatabaseDisabled is returned.
func InitDatabase() error {
	config := ConfigFromEnv()
	if config.Password == "" {
		return ErrDatabaseDisabled
	}

	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	UseDB(db)

	if err := initializeSchema(); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Println("✅ Database connected successfully!")
	return nil
}

// UseDB installs an already opened handle.
func UseDB(db *sql.DB) {
	DB = db
	Queries = database.New(db)
}

// Enabled reports whether a database handle is installed.
func Enabled() bool {
	return DB != nil && Queries != nil
}

// initializeSchema creates the backtest and order tables if they don't exist
func initializeSchema() error {
	schemaSQL := `
	CREATE TABLE IF NOT EXISTS backtest_runs (
		id UUID PRIMARY KEY,
		symbol TEXT NOT NULL,
		mode TEXT NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		total_r NUMERIC NOT NULL DEFAULT 0,
		win_ratio NUMERIC NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS backtest_results (
		id BIGSERIAL PRIMARY KEY,
		run_id UUID NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
		trade_date DATE NOT NULL,
		trade TEXT NOT NULL,
		level NUMERIC,
		stop_loss NUMERIC,
		take_profit NUMERIC,
		outcome TEXT NOT NULL,
		r_multiple NUMERIC NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS live_orders (
		id BIGSERIAL PRIMARY KEY,
		order_id TEXT NOT NULL UNIQUE,
		client_order_id TEXT,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		lot_size NUMERIC NOT NULL,
		price NUMERIC NOT NULL,
		stop_loss NUMERIC NOT NULL,
		take_profit NUMERIC NOT NULL,
		status TEXT NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_backtest_results_run ON backtest_results(run_id);
	CREATE INDEX IF NOT EXISTS idx_live_orders_symbol ON live_orders(symbol);
	`

	_, err := DB.Exec(schemaSQL)
	return err
}

func CloseDatabase() error {
	if DB != nil {
		err := DB.Close()
		DB, Queries = nil, nil
		return err
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func HealthCheck() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}
	return DB.Ping()
}
