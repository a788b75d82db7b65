package machines

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

// CreateMachineInput carries the fields required to register a machine.
type CreateMachineInput struct {
	Code     string
	Name     string
	Location string
}

// UpdateMachineInput carries the optional fields an update may change.
type UpdateMachineInput struct {
	Name     *string
	Location *string
	Active   *bool
}

// Service manages the machine registry.
type Service interface {
	Create(ctx context.Context, input CreateMachineInput) (*models.Machine, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateMachineInput) (*models.Machine, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Machine, error)
	List(ctx context.Context) ([]models.Machine, error)
}

type service struct {
	repo Repository
}

// NewService wires a machine service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("machines repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateMachineInput) (*models.Machine, error) {
	if input.Code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.Location == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location is required")
	}

	machine := &models.Machine{
		ID:       uuid.New(),
		Code:     input.Code,
		Name:     input.Name,
		Location: input.Location,
		Active:   true,
	}
	if err := s.repo.Create(ctx, machine); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "machine code already registered")
		}
		return nil, fmt.Errorf("create machine: %w", err)
	}
	return machine, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateMachineInput) (*models.Machine, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "machine id is required")
	}

	updates := map[string]any{}
	if input.Name != nil {
		if *input.Name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		updates["name"] = *input.Name
	}
	if input.Location != nil {
		if *input.Location == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "location must not be empty")
		}
		updates["location"] = *input.Location
	}
	if input.Active != nil {
		updates["active"] = *input.Active
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("update machine %s: %w", id, err)
	}
	return s.GetByID(ctx, id)
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Machine, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "machine id is required")
	}
	machine, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "machine not found")
		}
		return nil, err
	}
	return machine, nil
}

func (s *service) List(ctx context.Context) ([]models.Machine, error) {
	return s.repo.List(ctx)
}
