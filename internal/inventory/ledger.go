package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kasira-pos/kasira-pos/internal/platform/httpx"
)

// Querier is the subset of pgx operations the ledger needs; both *pgxpool.Pool
// and pgx.Tx satisfy it, so callers can run ledger updates inside their own
// transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ledger owns per-SKU stock counts. Every mutation is a single conditional
// statement so concurrent writers serialize in the database, never in Go.
type Ledger struct{}

// NewLedger constructs a Ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Decrement atomically subtracts qty from the SKU's stock, refusing to go
// negative. Returns the remaining stock on success.
func (l *Ledger) Decrement(ctx context.Context, q Querier, sku string, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	var remaining int
	err := q.QueryRow(ctx, `UPDATE products
SET stock = stock - $2, updated_at = NOW()
WHERE sku = $1 AND is_active AND stock >= $2
RETURNING stock`, sku, qty).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	// The guarded update matched nothing: either the SKU is unknown or the
	// stock floor blocked it. Tell the caller which.
	var available int
	err = q.QueryRow(ctx, `SELECT stock FROM products WHERE sku = $1 AND is_active`, sku).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: product %s", httpx.ErrNotFound, sku)
	}
	if err != nil {
		return 0, err
	}
	return 0, &InsufficientStockError{SKU: sku, Requested: qty, Available: available}
}

// Increment atomically adds qty to the SKU's stock. Returns the new stock.
func (l *Ledger) Increment(ctx context.Context, q Querier, sku string, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	var stock int
	err := q.QueryRow(ctx, `UPDATE products
SET stock = stock + $2, updated_at = NOW()
WHERE sku = $1
RETURNING stock`, sku, qty).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: product %s", httpx.ErrNotFound, sku)
	}
	return stock, err
}

// Stock reads the current stock for a SKU.
func (l *Ledger) Stock(ctx context.Context, q Querier, sku string) (int, error) {
	var stock int
	err := q.QueryRow(ctx, `SELECT stock FROM products WHERE sku = $1`, sku).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: product %s", httpx.ErrNotFound, sku)
	}
	return stock, err
}
