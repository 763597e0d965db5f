package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasira-pos/kasira-pos/internal/platform/httpx"
)

type fakeRepository struct {
	byID       map[int64]Product
	bySKU      map[string]int64
	byBarcode  map[string]int64
	nextID     int64
	skuSeq     int64
	duplicates int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		byID:      make(map[int64]Product),
		bySKU:     make(map[string]int64),
		byBarcode: make(map[string]int64),
		nextID:    1,
	}
}

func (f *fakeRepository) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	out := []Product{}
	for _, p := range f.byID {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (f *fakeRepository) GetByID(ctx context.Context, id int64) (Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: product %d", httpx.ErrNotFound, id)
	}
	return p, nil
}

func (f *fakeRepository) GetBySKU(ctx context.Context, sku string) (Product, error) {
	id, ok := f.bySKU[sku]
	if !ok {
		return Product{}, fmt.Errorf("%w: product %s", httpx.ErrNotFound, sku)
	}
	return f.byID[id], nil
}

func (f *fakeRepository) Create(ctx context.Context, product Product) (Product, error) {
	if f.duplicates > 0 {
		f.duplicates--
		return Product{}, fmt.Errorf("%w: barcode", httpx.ErrDuplicate)
	}
	if _, exists := f.bySKU[product.SKU]; exists {
		return Product{}, fmt.Errorf("%w: sku %s", httpx.ErrDuplicate, product.SKU)
	}
	if _, exists := f.byBarcode[product.Barcode]; exists {
		return Product{}, fmt.Errorf("%w: barcode %s", httpx.ErrDuplicate, product.Barcode)
	}
	product.ID = f.nextID
	f.nextID++
	f.byID[product.ID] = product
	f.bySKU[product.SKU] = product.ID
	f.byBarcode[product.Barcode] = product.ID
	return product, nil
}

func (f *fakeRepository) Update(ctx context.Context, id int64, product Product) error {
	if _, ok := f.byID[id]; !ok {
		return fmt.Errorf("%w: product %d", httpx.ErrNotFound, id)
	}
	product.ID = id
	f.byID[id] = product
	return nil
}

func (f *fakeRepository) LowStock(ctx context.Context) ([]Product, error) {
	out := []Product{}
	for _, p := range f.byID {
		if p.IsActive && p.Stock <= p.LowStockThreshold {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepository) NextSKUSequence(ctx context.Context) (int64, error) {
	f.skuSeq++
	return f.skuSeq, nil
}

func TestCreateGeneratesSKUAndBarcode(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	product, err := svc.Create(context.Background(), CreateProductRequest{
		Name:  "Whole Milk 1L",
		Price: 1.20,
		Stock: 50,
	})
	require.NoError(t, err)

	assert.Equal(t, "SKU00001", product.SKU)
	assert.True(t, ValidBarcode(product.Barcode))
	assert.Equal(t, DefaultLowStockThreshold, product.LowStockThreshold)
	assert.True(t, product.IsActive)

	second, err := svc.Create(context.Background(), CreateProductRequest{Name: "Bread", Price: 1.80})
	require.NoError(t, err)
	assert.Equal(t, "SKU00002", second.SKU)
}

func TestCreateKeepsExplicitSKU(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	product, err := svc.Create(context.Background(), CreateProductRequest{
		SKU:   "RICE-5KG",
		Name:  "Basmati Rice 5kg",
		Price: 12.50,
	})
	require.NoError(t, err)
	assert.Equal(t, "RICE-5KG", product.SKU)
	assert.Equal(t, int64(0), repo.skuSeq, "sequence should not be consumed")
}

func TestCreateRetriesGeneratedBarcodeCollision(t *testing.T) {
	repo := newFakeRepository()
	repo.duplicates = 2
	svc := NewService(repo)

	product, err := svc.Create(context.Background(), CreateProductRequest{Name: "Coffee", Price: 6.90})
	require.NoError(t, err)
	assert.True(t, ValidBarcode(product.Barcode))
}

func TestCreateExplicitBarcodeCollisionNotRetried(t *testing.T) {
	repo := newFakeRepository()
	repo.duplicates = 1
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), CreateProductRequest{
		Name:    "Coffee",
		Barcode: "036000291452",
		Price:   6.90,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newFakeRepository())

	cases := []struct {
		name string
		req  CreateProductRequest
	}{
		{"missing name", CreateProductRequest{Price: 1}},
		{"negative price", CreateProductRequest{Name: "x", Price: -1}},
		{"negative stock", CreateProductRequest{Name: "x", Stock: -1}},
		{"bad barcode", CreateProductRequest{Name: "x", Barcode: "123"}},
		{"bad check digit", CreateProductRequest{Name: "x", Barcode: "036000291453"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, httpx.ErrValidation)
		})
	}
}

func TestUpdatePartial(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), CreateProductRequest{Name: "Soap", Price: 2.40, Stock: 60})
	require.NoError(t, err)

	newPrice := 2.60
	updated, err := svc.Update(context.Background(), created.ID, UpdateProductRequest{Price: &newPrice})
	require.NoError(t, err)
	assert.Equal(t, 2.60, updated.Price)
	assert.Equal(t, "Soap", updated.Name)
	assert.Equal(t, created.SKU, updated.SKU)
}

func TestDeactivate(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), CreateProductRequest{Name: "Eggs", Price: 3.60})
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(context.Background(), created.ID))

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestLowStock(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	threshold := 10
	_, err := svc.Create(context.Background(), CreateProductRequest{Name: "Low", Price: 1, Stock: 5, LowStockThreshold: &threshold})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateProductRequest{Name: "High", Price: 1, Stock: 50, LowStockThreshold: &threshold})
	require.NoError(t, err)

	low, err := svc.LowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "Low", low[0].Name)
}
