package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/kasira-pos/kasira-pos/internal/inventory"
	"github.com/kasira-pos/kasira-pos/internal/platform/httpx"
	"github.com/kasira-pos/kasira-pos/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockProduct struct {
	price float64
	stock int
}

type mockRepository struct {
	mu       sync.Mutex
	products map[string]*mockProduct
	counters map[string]int
	sales    []Sale
	items    map[int64][]SaleItem
	nextID   int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		products: make(map[string]*mockProduct),
		counters: make(map[string]int),
		items:    make(map[int64][]SaleItem),
		nextID:   1,
	}
}

func (m *mockRepository) addProduct(sku string, price float64, stock int) {
	m.products[sku] = &mockProduct{price: price, stock: stock}
}

// WithTx serialises callers and stages all writes, committing only when the
// callback succeeds. A failed callback leaves stock, counters and sales as
// they were.
func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &mockTxRepo{
		mock:            m,
		stagedStock:     make(map[string]int),
		stagedCounters:  make(map[string]int),
		stagedItemLists: make(map[int64][]SaleItem),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for sku, stock := range tx.stagedStock {
		m.products[sku].stock = stock
	}
	for key, seq := range tx.stagedCounters {
		m.counters[key] = seq
	}
	m.sales = append(m.sales, tx.stagedSales...)
	for id, items := range tx.stagedItemLists {
		m.items[id] = items
	}
	m.nextID += int64(len(tx.stagedSales))
	return nil
}

func (m *mockRepository) List(ctx context.Context, filter ListFilter) ([]SaleWithUser, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []SaleWithUser{}
	for _, s := range m.sales {
		if !filter.From.IsZero() && s.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !s.CreatedAt.Before(filter.To) {
			continue
		}
		s.Items = m.items[s.ID]
		result = append(result, SaleWithUser{Sale: s})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, len(result), nil
}

func (m *mockRepository) Get(ctx context.Context, saleID string) (SaleWithUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sales {
		if s.SaleID == saleID {
			s.Items = m.items[s.ID]
			return SaleWithUser{Sale: s}, nil
		}
	}
	return SaleWithUser{}, fmt.Errorf("%w: sale %s", httpx.ErrNotFound, saleID)
}

func (m *mockRepository) stock(sku string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[sku].stock
}

type mockTxRepo struct {
	mock            *mockRepository
	stagedStock     map[string]int
	stagedCounters  map[string]int
	stagedSales     []Sale
	stagedItemLists map[int64][]SaleItem
}

func (t *mockTxRepo) AllocateSequence(ctx context.Context, dateKey string) (int, error) {
	seq, staged := t.stagedCounters[dateKey]
	if !staged {
		seq = t.mock.counters[dateKey]
	}
	seq++
	t.stagedCounters[dateKey] = seq
	return seq, nil
}

func (t *mockTxRepo) ProductPrice(ctx context.Context, sku string) (float64, error) {
	p, ok := t.mock.products[sku]
	if !ok {
		return 0, fmt.Errorf("%w: product %s", httpx.ErrNotFound, sku)
	}
	return p.price, nil
}

func (t *mockTxRepo) DecrementStock(ctx context.Context, sku string, qty int) (int, error) {
	p, ok := t.mock.products[sku]
	if !ok {
		return 0, fmt.Errorf("%w: product %s", httpx.ErrNotFound, sku)
	}
	stock, staged := t.stagedStock[sku]
	if !staged {
		stock = p.stock
	}
	if stock < qty {
		return 0, &inventory.InsufficientStockError{SKU: sku, Requested: qty, Available: stock}
	}
	stock -= qty
	t.stagedStock[sku] = stock
	return stock, nil
}

func (t *mockTxRepo) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	id := t.mock.nextID + int64(len(t.stagedSales))
	sale.ID = id
	t.stagedSales = append(t.stagedSales, sale)
	return id, nil
}

func (t *mockTxRepo) InsertSaleItems(ctx context.Context, saleID int64, items []SaleItem) error {
	t.stagedItemLists[saleID] = items
	return nil
}

func newTestService(repo *mockRepository) (*Service, *auditRecorder) {
	audit := &auditRecorder{}
	svc := NewService(repo, audit, slog.Default())
	svc.now = func() time.Time { return time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC) }
	return svc, audit
}

type auditRecorder struct {
	mu      sync.Mutex
	entries []string
}

func (a *auditRecorder) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, log.EntityID)
	return nil
}

// ============================================================================
// TESTS
// ============================================================================

func TestRecordFirstSaleOfDay(t *testing.T) {
	repo := newMockRepository()
	repo.addProduct("SKU00001", 10.0, 5)
	svc, audit := newTestService(repo)

	sale, err := svc.Record(context.Background(), 7, RecordSaleRequest{
		Items:         []RecordSaleItem{{SKU: "SKU00001", Qty: 2}},
		PaymentMethod: PaymentMethodCash,
	})
	require.NoError(t, err)

	assert.Equal(t, "S20251101-001", sale.SaleID)
	assert.Equal(t, 20.0, sale.Total)
	assert.Equal(t, PaymentStatusPending, sale.PaymentStatus)
	assert.Equal(t, int64(7), sale.CreatedBy)
	assert.Equal(t, 3, repo.stock("SKU00001"))
	require.Len(t, sale.Items, 1)
	assert.Equal(t, 10.0, sale.Items[0].Price)
	assert.Equal(t, 20.0, sale.Items[0].LineTotal)
	assert.Equal(t, []string{"S20251101-001"}, audit.entries)
}

func TestRecordSequencesIncrementWithinDay(t *testing.T) {
	repo := newMockRepository()
	repo.addProduct("SKU00001", 2.5, 100)
	svc, _ := newTestService(repo)

	for i, want := range []string{"S20251101-001", "S20251101-002", "S20251101-003"} {
		sale, err := svc.Record(context.Background(), 1, RecordSaleRequest{
			Items:         []RecordSaleItem{{SKU: "SKU00001", Qty: 1}},
			PaymentMethod: PaymentMethodUPI,
			PaymentStatus: PaymentStatusPaid,
		})
		require.NoError(t, err, "sale %d", i)
		assert.Equal(t, want, sale.SaleID)
	}
}

func TestRecordUnknownSKU(t *testing.T) {
	repo := newMockRepository()
	repo.addProduct("SKU00001", 10.0, 5)
	svc, _ := newTestService(repo)

	_, err := svc.Record(context.Background(), 1, RecordSaleRequest{
		Items: []RecordSaleItem{
			{SKU: "SKU00001", Qty: 1},
			{SKU: "NOPE", Qty: 1},
		},
		PaymentMethod: PaymentMethodCash,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, httpx.ErrNotFound)

	// Nothing committed: stock and counter untouched.
	assert.Equal(t, 5, repo.stock("SKU00001"))
	assert.Empty(t, repo.sales)
	assert.Empty(t, repo.counters)
}

func TestRecordInsufficientStockAbortsWholeSale(t *testing.T) {
	repo := newMockRepository()
	repo.addProduct("SKU00001", 10.0, 5)
	repo.addProduct("SKU00002", 4.0, 1)
	svc, _ := newTestService(repo)

	_, err := svc.Record(context.Background(), 1, RecordSaleRequest{
		Items: []RecordSaleItem{
			{SKU: "SKU00001", Qty: 2},
			{SKU: "SKU00002", Qty: 3},
		},
		PaymentMethod: PaymentMethodCash,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "SKU00002", stockErr.SKU)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 1, stockErr.Available)

	assert.Equal(t, 5, repo.stock("SKU00001"))
	assert.Equal(t, 1, repo.stock("SKU00002"))
	assert.Empty(t, repo.sales)
}

func TestRecordPriceMismatchRejected(t *testing.T) {
	repo := newMockRepository()
	repo.addProduct("SKU00001", 10.0, 5)
	svc, _ := newTestService(repo)

	_, err := svc.Record(context.Background(), 1, RecordSaleRequest{
		Items:         []RecordSaleItem{{SKU: "SKU00001", Qty: 1, Price: 8.0}},
		PaymentMethod: PaymentMethodCash,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.Equal(t, 5, repo.stock("SKU00001"))
}

func TestRecordSubmittedPriceWithinTolerance(t *testing.T) {
	repo := newMockRepository()
	repo.addProduct("SKU00001", 10.0, 5)
	svc, _ := newTestService(repo)

	sale, err := svc.Record(context.Background(), 1, RecordSaleRequest{
		Items:         []RecordSaleItem{{SKU: "SKU00001", Qty: 1, Price: 10.004}},
		PaymentMethod: PaymentMethodCash,
	})
	require.NoError(t, err)
	assert.Equal(t, 10.0, sale.Items[0].Price)
}

func TestRecordValidation(t *testing.T) {
	repo := newMockRepository()
	repo.addProduct("SKU00001", 10.0, 5)
	svc, _ := newTestService(repo)

	cases := []struct {
		name string
		req  RecordSaleRequest
	}{
		{"empty cart", RecordSaleRequest{PaymentMethod: PaymentMethodCash}},
		{"bad method", RecordSaleRequest{
			Items:         []RecordSaleItem{{SKU: "SKU00001", Qty: 1}},
			PaymentMethod: "card",
		}},
		{"bad status", RecordSaleRequest{
			Items:         []RecordSaleItem{{SKU: "SKU00001", Qty: 1}},
			PaymentMethod: PaymentMethodCash,
			PaymentStatus: "refunded",
		}},
		{"zero qty", RecordSaleRequest{
			Items:         []RecordSaleItem{{SKU: "SKU00001", Qty: 0}},
			PaymentMethod: PaymentMethodCash,
		}},
		{"duplicate sku", RecordSaleRequest{
			Items: []RecordSaleItem{
				{SKU: "SKU00001", Qty: 1},
				{SKU: "SKU00001", Qty: 2},
			},
			PaymentMethod: PaymentMethodCash,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Record(context.Background(), 1, tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, httpx.ErrValidation)
		})
	}
	assert.Equal(t, 5, repo.stock("SKU00001"))
}

func TestRecordConcurrentOversell(t *testing.T) {
	repo := newMockRepository()
	repo.addProduct("SKU00001", 10.0, 5)
	svc, _ := newTestService(repo)

	var g errgroup.Group
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		i := i
		g.Go(func() error {
			_, err := svc.Record(context.Background(), 1, RecordSaleRequest{
				Items:         []RecordSaleItem{{SKU: "SKU00001", Qty: 3}},
				PaymentMethod: PaymentMethodCash,
			})
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var failures int
	for _, err := range results {
		if err != nil {
			assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
			failures++
		}
	}
	assert.Equal(t, 1, failures, "exactly one sale should fail")
	assert.Equal(t, 2, repo.stock("SKU00001"))
	assert.Len(t, repo.sales, 1)
}

func TestRecordConcurrentSequencesUnique(t *testing.T) {
	repo := newMockRepository()
	repo.addProduct("SKU00001", 1.0, 1000)
	svc, _ := newTestService(repo)

	const n = 20
	var g errgroup.Group
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			sale, err := svc.Record(context.Background(), 1, RecordSaleRequest{
				Items:         []RecordSaleItem{{SKU: "SKU00001", Qty: 1}},
				PaymentMethod: PaymentMethodUPI,
			})
			if err != nil {
				return err
			}
			ids[i] = sale.SaleID
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[string]bool, n)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate sale id %s", id)
		seen[id] = true
	}
	// The counter hands out a contiguous range.
	for seq := 1; seq <= n; seq++ {
		assert.True(t, seen[FormatSaleID("20251101", seq)], "missing sequence %d", seq)
	}
}

func TestRecordRetriesSerializationFailure(t *testing.T) {
	repo := newMockRepository()
	repo.addProduct("SKU00001", 10.0, 5)
	inner := &flakyRepository{mockRepository: repo, failures: 2}
	audit := &auditRecorder{}
	svc := NewService(inner, audit, slog.Default())
	svc.now = func() time.Time { return time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC) }

	sale, err := svc.Record(context.Background(), 1, RecordSaleRequest{
		Items:         []RecordSaleItem{{SKU: "SKU00001", Qty: 1}},
		PaymentMethod: PaymentMethodCash,
	})
	require.NoError(t, err)
	assert.Equal(t, "S20251101-001", sale.SaleID)
	assert.Equal(t, 0, inner.failures)
}

func TestRecordGivesUpAfterRepeatedConflicts(t *testing.T) {
	repo := newMockRepository()
	repo.addProduct("SKU00001", 10.0, 5)
	inner := &flakyRepository{mockRepository: repo, failures: 10}
	svc := NewService(inner, nil, slog.Default())
	svc.now = func() time.Time { return time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC) }

	_, err := svc.Record(context.Background(), 1, RecordSaleRequest{
		Items:         []RecordSaleItem{{SKU: "SKU00001", Qty: 1}},
		PaymentMethod: PaymentMethodCash,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, httpx.ErrConflict)
	assert.Equal(t, 5, repo.stock("SKU00001"))
}

// flakyRepository fails WithTx with a serialization error a fixed number of
// times before delegating.
type flakyRepository struct {
	*mockRepository
	failures int
}

func (f *flakyRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if f.failures > 0 {
		f.failures--
		return serializationFailure()
	}
	return f.mockRepository.WithTx(ctx, fn)
}

func serializationFailure() error {
	return fmt.Errorf("tx: %w", &pgconn.PgError{Code: "40001", Message: "could not serialize access"})
}

func TestGetUnknownSale(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestService(repo)

	_, err := svc.Get(context.Background(), "S20250101-001")
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpx.ErrNotFound))
}
