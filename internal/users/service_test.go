package users

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/vendhub/vendhub-backend/pkg/errors"
)

type fakeGateway struct {
	customers int
	err       error
}

func (f *fakeGateway) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.customers++
	return fmt.Sprintf("cus_%d", f.customers), nil
}

func setupUsersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  stripe_customer_id TEXT UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func newUsersService(t *testing.T, db *gorm.DB, gateway CustomerCreator) Service {
	t.Helper()

	svc, err := NewService(NewRepository(db), gateway)
	require.NoError(t, err)
	return svc
}

func TestRegister(t *testing.T) {
	db := setupUsersTestDB(t)
	svc := newUsersService(t, db, &fakeGateway{})
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: " Jamie@Example.com ", Name: "Jamie"})
	require.NoError(t, err)
	require.Equal(t, "jamie@example.com", user.Email)
	require.Nil(t, user.StripeCustomerID)

	_, err = svc.Register(ctx, RegisterInput{Email: "jamie@example.com", Name: "Other"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestEnsureStripeCustomer_CreatesOnce(t *testing.T) {
	db := setupUsersTestDB(t)
	gateway := &fakeGateway{}
	svc := newUsersService(t, db, gateway)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Name: "A"})
	require.NoError(t, err)

	first, err := svc.EnsureStripeCustomer(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "cus_1", first)

	second, err := svc.EnsureStripeCustomer(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, gateway.customers)
}

func TestEnsureStripeCustomer_GatewayFailure(t *testing.T) {
	db := setupUsersTestDB(t)
	svc := newUsersService(t, db, &fakeGateway{err: errors.New("stripe is down")})
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: "b@example.com", Name: "B"})
	require.NoError(t, err)

	_, err = svc.EnsureStripeCustomer(ctx, user.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeDependency, typed.Code())
}
