// Package warehouse is the warehouse catalog backing inventory positions.
package warehouse

import (
	"context"
	"strings"
	"time"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/internal/domain/filter"
)

// Warehouse is a physical or logical storage location.
type Warehouse struct {
	ID        id.ID     `db:"id"`
	Code      string    `db:"code"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Repository is the warehouse store contract.
type Repository interface {
	Create(ctx context.Context, w *Warehouse) error
	GetByID(ctx context.Context, warehouseID id.ID) (*Warehouse, error)
	List(ctx context.Context, params filter.ListParams) ([]Warehouse, error)
}

// Service validates and creates warehouses.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, code, name string) (*Warehouse, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	if code == "" {
		return nil, apperror.NewValidation("code is required")
	}
	if name == "" {
		return nil, apperror.NewValidation("name is required")
	}

	w := &Warehouse{
		ID:   id.New(),
		Code: code,
		Name: name,
	}
	if err := s.repo.Create(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) Get(ctx context.Context, warehouseID id.ID) (*Warehouse, error) {
	return s.repo.GetByID(ctx, warehouseID)
}

func (s *Service) List(ctx context.Context, params filter.ListParams) ([]Warehouse, error) {
	return s.repo.List(ctx, params.Normalize())
}
