package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kasira-pos/kasira-pos/internal/platform/httpx"
	"github.com/kasira-pos/kasira-pos/internal/shared"
)

// maxRecordAttempts bounds retries after serialization failures.
const maxRecordAttempts = 3

// priceTolerance is the largest client/catalog unit price difference accepted
// as float rounding noise.
const priceTolerance = 0.005

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements sale recording and querying.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// Record persists the cart as an immutable sale. The day counter bump, every
// stock decrement and the sale rows are committed in one transaction, so a
// failure on any line leaves stock and counters untouched. Serialization
// failures are retried a bounded number of times before surfacing a conflict.
func (s *Service) Record(ctx context.Context, actorID int64, req RecordSaleRequest) (Sale, error) {
	if len(req.Items) == 0 {
		return Sale{}, fmt.Errorf("%w: at least one item required", httpx.ErrValidation)
	}
	if !ValidPaymentMethod(req.PaymentMethod) {
		return Sale{}, fmt.Errorf("%w: unknown payment method %q", httpx.ErrValidation, req.PaymentMethod)
	}
	if req.PaymentStatus == "" {
		req.PaymentStatus = PaymentStatusPending
	}
	if !ValidPaymentStatus(req.PaymentStatus) {
		return Sale{}, fmt.Errorf("%w: unknown payment status %q", httpx.ErrValidation, req.PaymentStatus)
	}
	seen := make(map[string]struct{}, len(req.Items))
	for i := range req.Items {
		req.Items[i].SKU = strings.TrimSpace(req.Items[i].SKU)
		item := req.Items[i]
		if item.SKU == "" {
			return Sale{}, fmt.Errorf("%w: item %d missing sku", httpx.ErrValidation, i)
		}
		if item.Qty < 1 {
			return Sale{}, fmt.Errorf("%w: item %s quantity must be at least 1", httpx.ErrValidation, item.SKU)
		}
		if _, dup := seen[item.SKU]; dup {
			return Sale{}, fmt.Errorf("%w: item %s listed more than once", httpx.ErrValidation, item.SKU)
		}
		seen[item.SKU] = struct{}{}
	}

	var sale Sale
	var err error
	for attempt := 1; attempt <= maxRecordAttempts; attempt++ {
		sale, err = s.recordOnce(ctx, actorID, req)
		if err == nil {
			break
		}
		if !retryableTxError(err) {
			return Sale{}, err
		}
		if s.logger != nil {
			s.logger.Warn("sale tx retry",
				slog.Int("attempt", attempt),
				slog.Any("error", err))
		}
		if attempt == maxRecordAttempts {
			return Sale{}, fmt.Errorf("%w: sale could not be recorded, retry", httpx.ErrConflict)
		}
	}

	if s.audit != nil {
		if auditErr := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "sales:record",
			Entity:   "sale",
			EntityID: sale.SaleID,
			Meta: map[string]any{
				"total":          sale.Total,
				"items":          len(sale.Items),
				"payment_method": string(sale.PaymentMethod),
			},
		}); auditErr != nil && s.logger != nil {
			s.logger.Warn("audit sale", slog.Any("error", auditErr))
		}
	}
	return sale, nil
}

func (s *Service) recordOnce(ctx context.Context, actorID int64, req RecordSaleRequest) (Sale, error) {
	now := s.now().UTC()
	var sale Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		items := make([]SaleItem, 0, len(req.Items))
		var total float64
		for _, line := range req.Items {
			price, err := tx.ProductPrice(ctx, line.SKU)
			if err != nil {
				return err
			}
			// Catalog price is authoritative. A submitted price is only a
			// cross-check against stale clients.
			if line.Price != 0 && math.Abs(line.Price-price) > priceTolerance {
				return fmt.Errorf("%w: price for %s changed, refresh and retry", httpx.ErrValidation, line.SKU)
			}
			if _, err := tx.DecrementStock(ctx, line.SKU, line.Qty); err != nil {
				return err
			}
			lineTotal := round2(price * float64(line.Qty))
			items = append(items, SaleItem{
				SKU:       line.SKU,
				Qty:       line.Qty,
				Price:     price,
				LineTotal: lineTotal,
			})
			total += lineTotal
		}

		dateKey := DateKey(now)
		seq, err := tx.AllocateSequence(ctx, dateKey)
		if err != nil {
			return err
		}

		sale = Sale{
			SaleID:        FormatSaleID(dateKey, seq),
			Items:         items,
			Total:         round2(total),
			PaymentMethod: req.PaymentMethod,
			PaymentStatus: req.PaymentStatus,
			CreatedBy:     actorID,
			CreatedAt:     now,
		}
		dbID, err := tx.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		sale.ID = dbID
		return tx.InsertSaleItems(ctx, dbID, items)
	})
	if err != nil {
		return Sale{}, err
	}
	return sale, nil
}

// List returns sales matching the filter plus the unpaginated total.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]SaleWithUser, int, error) {
	return s.repo.List(ctx, filter)
}

// Get returns one sale by public identifier.
func (s *Service) Get(ctx context.Context, saleID string) (SaleWithUser, error) {
	return s.repo.Get(ctx, saleID)
}

// retryableTxError matches serialization failures and deadlocks, which
// repeatable-read transactions are expected to hit under contention.
func retryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
