package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeLowStockScan scans the catalog for products at or below their
	// low stock threshold.
	TaskTypeLowStockScan = "inventory:low_stock_scan"
	// TaskTypeDailySummary aggregates one day of sales into a cached summary.
	TaskTypeDailySummary = "sales:daily_summary"
)

// LowStockScanPayload configures a low stock scan run.
type LowStockScanPayload struct {
	Limit int `json:"limit"`
}

// DailySummaryPayload selects the day to summarise, formatted YYYYMMDD.
// Empty means the previous day.
type DailySummaryPayload struct {
	DateKey string `json:"date_key"`
}

// NewLowStockScanTask constructs an Asynq task.
func NewLowStockScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLowStockScan, data), nil
}

// NewDailySummaryTask constructs an Asynq task.
func NewDailySummaryTask(payload DailySummaryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDailySummary, data), nil
}
