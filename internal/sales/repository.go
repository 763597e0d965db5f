package sales

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kasira-pos/kasira-pos/internal/inventory"
	"github.com/kasira-pos/kasira-pos/internal/platform/db"
	"github.com/kasira-pos/kasira-pos/internal/platform/httpx"
)

// TxRepository exposes the operations the sale recorder performs inside one
// transaction. Sequence allocation, every stock decrement and the sale insert
// share the same pgx.Tx, so they commit or roll back as a unit.
type TxRepository interface {
	AllocateSequence(ctx context.Context, dateKey string) (int, error)
	ProductPrice(ctx context.Context, sku string) (float64, error)
	DecrementStock(ctx context.Context, sku string, qty int) (int, error)
	InsertSale(ctx context.Context, sale Sale) (int64, error)
	InsertSaleItems(ctx context.Context, saleID int64, items []SaleItem) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filter ListFilter) ([]SaleWithUser, int, error)
	Get(ctx context.Context, saleID string) (SaleWithUser, error)
}

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool   *pgxpool.Pool
	ledger *inventory.Ledger
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, ledger *inventory.Ledger) *Repository {
	return &Repository{pool: pool, ledger: ledger}
}

type txRepository struct {
	tx     pgx.Tx
	ledger *inventory.Ledger
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, ledger: r.ledger})
	})
}

// AllocateSequence bumps the per-day counter in a single atomic upsert and
// returns the new value. Two racing callers can never observe the same value.
func (r *txRepository) AllocateSequence(ctx context.Context, dateKey string) (int, error) {
	var seq int
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_counters (date_key, seq) VALUES ($1, 1)
ON CONFLICT (date_key) DO UPDATE SET seq = sale_counters.seq + 1
RETURNING seq`, dateKey).Scan(&seq)
	return seq, err
}

func (r *txRepository) ProductPrice(ctx context.Context, sku string) (float64, error) {
	var price float64
	err := r.tx.QueryRow(ctx, `SELECT price FROM products WHERE sku = $1 AND is_active`, sku).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: product %s", httpx.ErrNotFound, sku)
	}
	return price, err
}

func (r *txRepository) DecrementStock(ctx context.Context, sku string, qty int) (int, error) {
	return r.ledger.Decrement(ctx, r.tx, sku, qty)
}

func (r *txRepository) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sales (sale_id, payment_method, payment_status, total, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		sale.SaleID, string(sale.PaymentMethod), string(sale.PaymentStatus), sale.Total, sale.CreatedBy, sale.CreatedAt).
		Scan(&id)
	return id, err
}

func (r *txRepository) InsertSaleItems(ctx context.Context, saleID int64, items []SaleItem) error {
	for _, item := range items {
		if _, err := r.tx.Exec(ctx, `INSERT INTO sale_items (sale_id, sku, qty, price, line_total)
VALUES ($1, $2, $3, $4, $5)`, saleID, item.SKU, item.Qty, item.Price, item.LineTotal); err != nil {
			return err
		}
	}
	return nil
}

// List returns persisted sales joined with the creating user, ordered by
// created_at ascending, with limit/offset pagination.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]SaleWithUser, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if !filter.From.IsZero() {
		argCount++
		where += ` AND s.created_at >= $` + strconv.Itoa(argCount)
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		argCount++
		where += ` AND s.created_at < $` + strconv.Itoa(argCount)
		args = append(args, filter.To)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales s`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT s.id, s.sale_id, s.payment_method, s.payment_status, s.total, s.created_by, s.created_at, u.email, u.role
FROM sales s JOIN users u ON u.id = s.created_by` + where + ` ORDER BY s.created_at ASC, s.id ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, (page-1)*limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []SaleWithUser
	var dbIDs []int64
	for rows.Next() {
		var s SaleWithUser
		if err := rows.Scan(&s.ID, &s.SaleID, &s.PaymentMethod, &s.PaymentStatus, &s.Total, &s.CreatedBy, &s.CreatedAt, &s.CreatedByUser.Email, &s.CreatedByUser.Role); err != nil {
			return nil, 0, err
		}
		result = append(result, s)
		dbIDs = append(dbIDs, s.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.attachItems(ctx, result, dbIDs); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// Get fetches one sale by its public sale identifier.
func (r *Repository) Get(ctx context.Context, saleID string) (SaleWithUser, error) {
	var s SaleWithUser
	err := r.pool.QueryRow(ctx, `SELECT s.id, s.sale_id, s.payment_method, s.payment_status, s.total, s.created_by, s.created_at, u.email, u.role
FROM sales s JOIN users u ON u.id = s.created_by WHERE s.sale_id = $1`, saleID).
		Scan(&s.ID, &s.SaleID, &s.PaymentMethod, &s.PaymentStatus, &s.Total, &s.CreatedBy, &s.CreatedAt, &s.CreatedByUser.Email, &s.CreatedByUser.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return SaleWithUser{}, fmt.Errorf("%w: sale %s", httpx.ErrNotFound, saleID)
	}
	if err != nil {
		return SaleWithUser{}, err
	}
	list := []SaleWithUser{s}
	if err := r.attachItems(ctx, list, []int64{s.ID}); err != nil {
		return SaleWithUser{}, err
	}
	return list[0], nil
}

func (r *Repository) attachItems(ctx context.Context, sales []SaleWithUser, dbIDs []int64) error {
	if len(dbIDs) == 0 {
		return nil
	}
	rows, err := r.pool.Query(ctx, `SELECT sale_id, sku, qty, price, line_total FROM sale_items WHERE sale_id = ANY($1) ORDER BY id ASC`, dbIDs)
	if err != nil {
		return err
	}
	defer rows.Close()

	itemsByID := make(map[int64][]SaleItem, len(dbIDs))
	for rows.Next() {
		var saleID int64
		var item SaleItem
		if err := rows.Scan(&saleID, &item.SKU, &item.Qty, &item.Price, &item.LineTotal); err != nil {
			return err
		}
		itemsByID[saleID] = append(itemsByID[saleID], item)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range sales {
		sales[i].Items = itemsByID[sales[i].ID]
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
