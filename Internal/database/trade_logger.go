package datafeed

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	database "github.com/fazecat/mogulfx/Internal/database/sqlc"
	"github.com/fazecat/mogulfx/Internal/types"
)

// RunSummary is the headline of a stored backtest.
type RunSummary struct {
	Symbol   string
	Mode     string
	From     time.Time
	To       time.Time
	Wins     int
	Losses   int
	TotalR   float64
	WinRatio float64
}

// SaveBacktestRun stores the run and all of its rows in one transaction.
func SaveBacktestRun(ctx context.Context, summary RunSummary, rows []types.BacktestRow) (uuid.UUID, error) {
	if !Enabled() {
		return uuid.Nil, fmt.Errorf("database queries not initialized")
	}

	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := Queries.WithTx(tx)
	run, err := q.CreateBacktestRun(ctx, database.CreateBacktestRunParams{
		ID:        uuid.New(),
		Symbol:    summary.Symbol,
		Mode:      summary.Mode,
		StartDate: summary.From,
		EndDate:   summary.To,
		Wins:      int32(summary.Wins),
		Losses:    int32(summary.Losses),
		TotalR:    decimal.NewFromFloat(summary.TotalR).String(),
		WinRatio:  decimal.NewFromFloat(summary.WinRatio).Round(2).String(),
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create backtest run: %w", err)
	}

	for _, row := range rows {
		date, err := time.Parse("2006-01-02", row.Date)
		if err != nil {
			return uuid.Nil, fmt.Errorf("row date %q: %w", row.Date, err)
		}
		err = q.InsertBacktestResult(ctx, database.InsertBacktestResultParams{
			RunID:      run.ID,
			TradeDate:  date,
			Trade:      row.Trade,
			Level:      nullPrice(row.Level),
			StopLoss:   nullPrice(row.StopLoss),
			TakeProfit: nullPrice(row.TakeProfit),
			Outcome:    string(row.Outcome),
			RMultiple:  decimal.NewFromFloat(row.R).String(),
		})
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to store row %s: %w", row.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit backtest run: %w", err)
	}

	log.Printf("✅ Backtest run saved: %s %s (%d rows, id %s)\n", summary.Symbol, summary.Mode, len(rows), run.ID)
	return run.ID, nil
}

// LoadBacktestRun fetches a stored run and its rows.
func LoadBacktestRun(ctx context.Context, id uuid.UUID) (database.BacktestRun, []types.BacktestRow, error) {
	if !Enabled() {
		return database.BacktestRun{}, nil, fmt.Errorf("database queries not initialized")
	}

	run, err := Queries.GetBacktestRun(ctx, id)
	if err != nil {
		return database.BacktestRun{}, nil, fmt.Errorf("failed to fetch backtest run: %w", err)
	}
	results, err := Queries.ListBacktestResults(ctx, id)
	if err != nil {
		return run, nil, fmt.Errorf("failed to fetch backtest results: %w", err)
	}

	rows := make([]types.BacktestRow, 0, len(results))
	for _, r := range results {
		rMultiple, _ := decimal.NewFromString(r.RMultiple)
		rows = append(rows, types.BacktestRow{
			Date:       r.TradeDate.Format("2006-01-02"),
			Symbol:     run.Symbol,
			Trade:      r.Trade,
			Level:      priceFromNull(r.Level),
			StopLoss:   priceFromNull(r.StopLoss),
			TakeProfit: priceFromNull(r.TakeProfit),
			Outcome:    types.Outcome(r.Outcome),
			R:          rMultiple.InexactFloat64(),
		})
	}
	return run, rows, nil
}

func LogOrderPlacement(ctx context.Context, signal types.TradeSignal, orderID, clientOrderID string) error {
	if !Enabled() {
		return fmt.Errorf("database queries not initialized")
	}

	err := Queries.LogLiveOrder(ctx, database.LogLiveOrderParams{
		OrderID:       orderID,
		ClientOrderID: sql.NullString{String: clientOrderID, Valid: clientOrderID != ""},
		Symbol:        signal.Symbol,
		Side:          string(signal.Direction),
		LotSize:       decimal.NewFromFloat(signal.LotSize).String(),
		Price:         decimal.NewFromFloat(signal.Level).String(),
		StopLoss:      decimal.NewFromFloat(signal.StopLoss).String(),
		TakeProfit:    decimal.NewFromFloat(signal.TakeProfit).String(),
		Status:        "pending",
		ExpiresAt:     signal.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to log order: %w", err)
	}

	log.Printf("✅ Order logged to database: %s %s x%.2f @ %.5f (Order ID: %s)\n",
		signal.Direction, signal.Symbol, signal.LotSize, signal.Level, orderID)
	return nil
}

func UpdateOrderStatus(ctx context.Context, orderID string, status string) error {
	if !Enabled() {
		return fmt.Errorf("database queries not initialized")
	}

	err := Queries.UpdateLiveOrderStatus(ctx, database.UpdateLiveOrderStatusParams{
		Status:  status,
		OrderID: orderID,
	})
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	log.Printf("✅ Order status updated: Order ID %s -> %s\n", orderID, status)
	return nil
}

func GetRecentOrders(ctx context.Context, limit int32) ([]database.LiveOrder, error) {
	if !Enabled() {
		return nil, fmt.Errorf("database queries not initialized")
	}

	orders, err := Queries.ListLiveOrders(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch orders: %w", err)
	}
	return orders, nil
}

func nullPrice(v float64) sql.NullString {
	if v == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: decimal.NewFromFloat(v).String(), Valid: true}
}

func priceFromNull(v sql.NullString) float64 {
	if !v.Valid {
		return 0
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}
