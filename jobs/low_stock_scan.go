package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/kasira-pos/kasira-pos/internal/jobs"
)

// NewLowStockScanHandler returns the handler for TaskTypeLowStockScan. It logs
// every product at or below its threshold so operators can reorder.
func NewLowStockScanHandler(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("low_stock_scan")
		return tracker.End(runLowStockScan(ctx, t, pool, logger, metrics))
	}
}

func runLowStockScan(ctx context.Context, t *asynq.Task, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) error {
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	limit := payload.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := pool.Query(ctx, `SELECT sku, name, stock, low_stock_threshold
FROM products
WHERE is_active AND stock <= low_stock_threshold
ORDER BY stock ASC
LIMIT $1`, limit)
	if err != nil {
		return err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var sku, name string
		var stock, threshold int
		if err := rows.Scan(&sku, &name, &stock, &threshold); err != nil {
			return err
		}
		count++
		logger.Warn("low stock",
			slog.String("sku", sku),
			slog.String("name", name),
			slog.Int("stock", stock),
			slog.Int("threshold", threshold))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	metrics.SetLowStockCount(count)
	logger.Info("low stock scan finished", slog.Int("flagged", count))
	return nil
}
