package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kasira-pos/kasira-pos/internal/platform/httpx"
)

// Service coordinates catalog operations.
type Service struct {
	repo Repository
}

// NewService constructs the catalog service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns products matching the filters plus the unfiltered total.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

// Get fetches a product by id.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, fmt.Errorf("%w: invalid product id", httpx.ErrValidation)
	}
	return s.repo.GetByID(ctx, id)
}

// GetBySKU fetches a product by SKU.
func (s *Service) GetBySKU(ctx context.Context, sku string) (Product, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return Product{}, fmt.Errorf("%w: sku required", httpx.ErrValidation)
	}
	return s.repo.GetBySKU(ctx, sku)
}

// Create stores a new product, generating SKU and barcode when absent.
func (s *Service) Create(ctx context.Context, req CreateProductRequest) (Product, error) {
	if strings.TrimSpace(req.Name) == "" {
		return Product{}, fmt.Errorf("%w: product name required", httpx.ErrValidation)
	}
	if req.Price < 0 {
		return Product{}, fmt.Errorf("%w: price must be >= 0", httpx.ErrValidation)
	}
	if req.Stock < 0 {
		return Product{}, fmt.Errorf("%w: stock must be >= 0", httpx.ErrValidation)
	}
	if req.Barcode != "" && !ValidBarcode(req.Barcode) {
		return Product{}, fmt.Errorf("%w: barcode must be 12 numeric digits with valid check digit", httpx.ErrValidation)
	}

	sku := strings.TrimSpace(req.SKU)
	if sku == "" {
		seq, err := s.repo.NextSKUSequence(ctx)
		if err != nil {
			return Product{}, fmt.Errorf("allocate sku: %w", err)
		}
		sku = fmt.Sprintf("SKU%05d", seq)
	}

	threshold := DefaultLowStockThreshold
	if req.LowStockThreshold != nil {
		threshold = *req.LowStockThreshold
	}

	product := Product{
		SKU:               sku,
		Barcode:           req.Barcode,
		Name:              strings.TrimSpace(req.Name),
		Category:          strings.TrimSpace(req.Category),
		Unit:              strings.TrimSpace(req.Unit),
		Price:             req.Price,
		Stock:             req.Stock,
		LowStockThreshold: threshold,
		IsActive:          true,
	}

	// A generated barcode can collide with an existing row; retry with a
	// fresh value a few times before giving up.
	attempts := 1
	if product.Barcode == "" {
		attempts = 5
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if req.Barcode == "" {
			product.Barcode = GenerateBarcode()
		}
		created, err := s.repo.Create(ctx, product)
		if err == nil {
			return created, nil
		}
		lastErr = err
		if !errors.Is(err, httpx.ErrDuplicate) || req.Barcode != "" {
			break
		}
	}
	return Product{}, lastErr
}

// Update applies a partial update to a product.
func (s *Service) Update(ctx context.Context, id int64, req UpdateProductRequest) (Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return Product{}, fmt.Errorf("%w: product name required", httpx.ErrValidation)
		}
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		product.Category = strings.TrimSpace(*req.Category)
	}
	if req.Unit != nil {
		product.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return Product{}, fmt.Errorf("%w: price must be >= 0", httpx.ErrValidation)
		}
		product.Price = *req.Price
	}
	if req.LowStockThreshold != nil {
		if *req.LowStockThreshold < 0 {
			return Product{}, fmt.Errorf("%w: low stock threshold must be >= 0", httpx.ErrValidation)
		}
		product.LowStockThreshold = *req.LowStockThreshold
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, id, product); err != nil {
		return Product{}, err
	}
	return s.repo.GetByID(ctx, id)
}

// Deactivate retires a product from sale without deleting its history.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	inactive := false
	_, err := s.Update(ctx, id, UpdateProductRequest{IsActive: &inactive})
	return err
}

// LowStock lists active products at or below their threshold.
func (s *Service) LowStock(ctx context.Context) ([]Product, error) {
	return s.repo.LowStock(ctx)
}
