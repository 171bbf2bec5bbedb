// Package product is the product catalog backing inventory positions.
package product

import (
	"context"
	"strings"
	"time"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/internal/domain/filter"
)

// Product is a catalog item.
type Product struct {
	ID        id.ID     `db:"id"`
	SKU       string    `db:"sku"`
	Name      string    `db:"name"`
	Unit      string    `db:"unit"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Repository is the product store contract.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, productID id.ID) (*Product, error)
	List(ctx context.Context, params filter.ListParams) ([]Product, error)
}

// Service validates and creates products.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates input and stores the product.
func (s *Service) Create(ctx context.Context, sku, name, unit string) (*Product, error) {
	sku = strings.TrimSpace(sku)
	name = strings.TrimSpace(name)
	if sku == "" {
		return nil, apperror.NewValidation("sku is required")
	}
	if name == "" {
		return nil, apperror.NewValidation("name is required")
	}
	if unit == "" {
		unit = "UN"
	}

	p := &Product{
		ID:   id.New(),
		SKU:  sku,
		Name: name,
		Unit: unit,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns the product or NotFound.
func (s *Service) Get(ctx context.Context, productID id.ID) (*Product, error) {
	return s.repo.GetByID(ctx, productID)
}

// List returns products matching params.
func (s *Service) List(ctx context.Context, params filter.ListParams) ([]Product, error) {
	return s.repo.List(ctx, params.Normalize())
}
