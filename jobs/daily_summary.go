package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	jobmetrics "github.com/kasira-pos/kasira-pos/internal/jobs"
)

// summaryTTL keeps cached daily summaries around long enough for reporting.
const summaryTTL = 45 * 24 * time.Hour

// DailySummary is the cached aggregate for one trading day.
type DailySummary struct {
	DateKey    string             `json:"date_key"`
	SaleCount  int                `json:"sale_count"`
	ItemsSold  int                `json:"items_sold"`
	GrossTotal float64            `json:"gross_total"`
	ByMethod   map[string]float64 `json:"by_method"`
}

// NewDailySummaryHandler returns the handler for TaskTypeDailySummary. It
// aggregates the day's sales and stores the result in Redis under
// sales:summary:<date_key>.
func NewDailySummaryHandler(pool *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("daily_summary")
		return tracker.End(runDailySummary(ctx, t, pool, rdb, logger))
	}
}

func runDailySummary(ctx context.Context, t *asynq.Task, pool *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger) error {
	var payload DailySummaryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	dateKey := payload.DateKey
	if dateKey == "" {
		dateKey = time.Now().UTC().AddDate(0, 0, -1).Format("20060102")
	}
	day, err := time.Parse("20060102", dateKey)
	if err != nil {
		return asynq.SkipRetry
	}
	from := day
	to := day.AddDate(0, 0, 1)

	summary := DailySummary{DateKey: dateKey, ByMethod: make(map[string]float64)}
	err = pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(total), 0)
FROM sales WHERE created_at >= $1 AND created_at < $2`, from, to).
		Scan(&summary.SaleCount, &summary.GrossTotal)
	if err != nil {
		return err
	}

	err = pool.QueryRow(ctx, `SELECT COALESCE(SUM(i.qty), 0)
FROM sale_items i JOIN sales s ON s.id = i.sale_id
WHERE s.created_at >= $1 AND s.created_at < $2`, from, to).
		Scan(&summary.ItemsSold)
	if err != nil {
		return err
	}

	rows, err := pool.Query(ctx, `SELECT payment_method, COALESCE(SUM(total), 0)
FROM sales WHERE created_at >= $1 AND created_at < $2
GROUP BY payment_method`, from, to)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var method string
		var amount float64
		if err := rows.Scan(&method, &amount); err != nil {
			return err
		}
		summary.ByMethod[method] = amount
	}
	if err := rows.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	if err := rdb.Set(ctx, "sales:summary:"+dateKey, data, summaryTTL).Err(); err != nil {
		return err
	}
	logger.Info("daily summary cached",
		slog.String("date_key", dateKey),
		slog.Int("sales", summary.SaleCount),
		slog.Float64("gross", summary.GrossTotal))
	return nil
}
