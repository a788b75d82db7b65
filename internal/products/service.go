package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendhub/vendhub-backend/pkg/db"
	"github.com/vendhub/vendhub-backend/pkg/db/models"
	pkgerrors "github.com/vendhub/vendhub-backend/pkg/errors"
)

// CreateProductInput carries the fields required to register a product.
type CreateProductInput struct {
	SKU        string
	Name       string
	PriceCents int
}

// UpdateProductInput carries the optional fields an update may change.
type UpdateProductInput struct {
	Name       *string
	PriceCents *int
	Active     *bool
}

// Service manages the product catalog.
type Service interface {
	Create(ctx context.Context, input CreateProductInput) (*models.Product, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListActive(ctx context.Context) ([]models.Product, error)
	ListActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type service struct {
	repo Repository
}

// NewService wires a product service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if input.SKU == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}

	product := &models.Product{
		ID:         uuid.New(),
		SKU:        input.SKU,
		Name:       input.Name,
		PriceCents: input.PriceCents,
		Active:     true,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "sku already registered")
		}
		return nil, fmt.Errorf("create product: %w", err)
	}
	return product, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	updates := map[string]any{}
	if input.Name != nil {
		if *input.Name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		updates["name"] = *input.Name
	}
	if input.PriceCents != nil {
		if *input.PriceCents <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
		}
		updates["price_cents"] = *input.PriceCents
	}
	if input.Active != nil {
		updates["active"] = *input.Active
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}
	return s.Get(ctx, id)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	return product, nil
}

func (s *service) ListActive(ctx context.Context) ([]models.Product, error) {
	return s.repo.ListActive(ctx)
}

func (s *service) ListActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	return s.repo.ListActiveByIDs(ctx, ids)
}
