package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation errors.
var (
	ErrReferenceRequired = errors.New("product reference is required")
	ErrNameRequired      = errors.New("product name is required")
	ErrNegativePrice     = errors.New("unit price cannot be negative")
	ErrNegativeRate      = errors.New("tax rates cannot be negative")
	ErrInvalidType       = errors.New("product type must be SALE or PURCHASE")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	if product.Type == "" {
		product.Type = TypeSale
	}
	if err := validate(product); err != nil {
		return Product{}, err
	}
	product.IsActive = true
	return s.repo.Create(ctx, product)
}

func (s *Service) Update(ctx context.Context, id int64, product Product) (Product, error) {
	if id <= 0 {
		return Product{}, ErrNotFound
	}
	if err := validate(product); err != nil {
		return Product{}, err
	}
	if err := s.repo.Update(ctx, id, product); err != nil {
		return Product{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}

// Adjust applies a stock movement. Negative stock is allowed: shipping more
// than the recorded quantity is a data entry problem to surface, not block.
func (s *Service) Adjust(ctx context.Context, productID int64, delta decimal.Decimal) error {
	if productID <= 0 {
		return ErrNotFound
	}
	if err := s.repo.AdjustStock(ctx, productID, delta); err != nil {
		return fmt.Errorf("adjust stock for product %d: %w", productID, err)
	}
	return nil
}

func validate(p Product) error {
	if strings.TrimSpace(p.Reference) == "" {
		return ErrReferenceRequired
	}
	if strings.TrimSpace(p.Name) == "" {
		return ErrNameRequired
	}
	if !p.Type.IsValid() {
		return ErrInvalidType
	}
	if p.UnitPrice.IsNegative() {
		return ErrNegativePrice
	}
	if p.VATPercent.IsNegative() || p.FodecPercent.IsNegative() {
		return ErrNegativeRate
	}
	return nil
}
