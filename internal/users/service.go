package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendhub/vendhub-backend/pkg/db"
	"github.com/vendhub/vendhub-backend/pkg/db/models"
	pkgerrors "github.com/vendhub/vendhub-backend/pkg/errors"
)

// CustomerCreator registers a customer with the payment gateway.
type CustomerCreator interface {
	CreateCustomer(ctx context.Context, email, name string) (string, error)
}

// RegisterInput carries the fields required to register a user.
type RegisterInput struct {
	Email string
	Name  string
}

// Service manages platform users.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	// EnsureStripeCustomer returns the user's gateway customer id, creating
	// it on first use. When two checkouts race, the guarded write makes one
	// winner and both return the stored id.
	EnsureStripeCustomer(ctx context.Context, id uuid.UUID) (string, error)
}

type service struct {
	repo    Repository
	gateway CustomerCreator
}

// NewService wires a user service with its dependencies.
func NewService(repo Repository, gateway CustomerCreator) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("customer gateway required")
	}
	return &service{repo: repo, gateway: gateway}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	user := &models.User{
		ID:    uuid.New(),
		Email: email,
		Name:  strings.TrimSpace(input.Name),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, err
	}
	return user, nil
}

func (s *service) EnsureStripeCustomer(ctx context.Context, id uuid.UUID) (string, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	customerID, err := s.gateway.CreateCustomer(ctx, user.Email, user.Name)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register gateway customer")
	}

	won, err := s.repo.SetStripeCustomerID(ctx, id, customerID)
	if err != nil {
		return "", fmt.Errorf("store gateway customer for user %s: %w", id, err)
	}
	if !won {
		// Lost the race; read back the id the winner stored.
		user, err = s.Get(ctx, id)
		if err != nil {
			return "", err
		}
		if user.StripeCustomerID == nil {
			return "", fmt.Errorf("gateway customer missing for user %s after concurrent create", id)
		}
		return *user.StripeCustomerID, nil
	}
	return customerID, nil
}
