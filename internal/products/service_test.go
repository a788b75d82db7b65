package products

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/vendhub/vendhub-backend/pkg/errors"
)

func setupProductsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  sku TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func newProductsService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc
}

func TestCreateProduct(t *testing.T) {
	db := setupProductsTestDB(t)
	svc := newProductsService(t, db)
	ctx := context.Background()

	product, err := svc.Create(ctx, CreateProductInput{SKU: "COLA", Name: "Cola", PriceCents: 250})
	require.NoError(t, err)
	require.True(t, product.Active)

	_, err = svc.Create(ctx, CreateProductInput{SKU: "COLA", Name: "Other Cola", PriceCents: 300})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestUpdateProduct(t *testing.T) {
	db := setupProductsTestDB(t)
	svc := newProductsService(t, db)
	ctx := context.Background()

	product, err := svc.Create(ctx, CreateProductInput{SKU: "CHIPS", Name: "Chips", PriceCents: 175})
	require.NoError(t, err)

	price := 200
	inactive := false
	updated, err := svc.Update(ctx, product.ID, UpdateProductInput{PriceCents: &price, Active: &inactive})
	require.NoError(t, err)
	require.Equal(t, 200, updated.PriceCents)
	require.False(t, updated.Active)

	_, err = svc.Update(ctx, product.ID, UpdateProductInput{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestListActiveByIDs_FiltersInactive(t *testing.T) {
	db := setupProductsTestDB(t)
	svc := newProductsService(t, db)
	ctx := context.Background()

	cola, err := svc.Create(ctx, CreateProductInput{SKU: "COLA", Name: "Cola", PriceCents: 250})
	require.NoError(t, err)
	water, err := svc.Create(ctx, CreateProductInput{SKU: "WATER", Name: "Water", PriceCents: 150})
	require.NoError(t, err)

	inactive := false
	_, err = svc.Update(ctx, water.ID, UpdateProductInput{Active: &inactive})
	require.NoError(t, err)

	list, err := svc.ListActiveByIDs(ctx, []uuid.UUID{cola.ID, water.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, cola.ID, list[0].ID)

	list, err = svc.ListActiveByIDs(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, list)
}
