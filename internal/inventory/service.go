package inventory

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kasira-pos/kasira-pos/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates stock movements outside the sale path.
type Service struct {
	pool   *pgxpool.Pool
	ledger *Ledger
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(pool *pgxpool.Pool, ledger *Ledger, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{pool: pool, ledger: ledger, audit: audit, logger: logger}
}

// Restock adds inbound quantity to a SKU and records the movement.
func (s *Service) Restock(ctx context.Context, input RestockInput) (int, error) {
	input.SKU = strings.TrimSpace(input.SKU)
	if input.SKU == "" {
		return 0, errors.New("inventory: sku required")
	}
	if input.Qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	stock, err := s.ledger.Increment(ctx, s.pool, input.SKU, input.Qty)
	if err != nil {
		return 0, err
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "inventory:restock",
			Entity:   "product",
			EntityID: input.SKU,
			Meta: map[string]any{
				"qty":   input.Qty,
				"stock": stock,
				"note":  input.Note,
			},
		}); err != nil && s.logger != nil {
			s.logger.Warn("audit restock", slog.Any("error", err))
		}
	}
	return stock, nil
}

// StockBySKU reads current stock for a SKU.
func (s *Service) StockBySKU(ctx context.Context, sku string) (int, error) {
	return s.ledger.Stock(ctx, s.pool, strings.TrimSpace(sku))
}
