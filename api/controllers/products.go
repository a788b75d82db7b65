package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vendhub/vendhub-backend/api/responses"
	"github.com/vendhub/vendhub-backend/api/validators"
	productsvc "github.com/vendhub/vendhub-backend/internal/products"
	"github.com/vendhub/vendhub-backend/pkg/db/models"
	pkgerrors "github.com/vendhub/vendhub-backend/pkg/errors"
	"github.com/vendhub/vendhub-backend/pkg/logger"
)

type createProductRequest struct {
	SKU        string `json:"sku" validate:"required,min=2,max=64"`
	Name       string `json:"name" validate:"required"`
	PriceCents int    `json:"price_cents" validate:"required,gt=0"`
}

type updateProductRequest struct {
	Name       *string `json:"name,omitempty"`
	PriceCents *int    `json:"price_cents,omitempty" validate:"omitempty,gt=0"`
	Active     *bool   `json:"active,omitempty"`
}

type productResponse struct {
	ProductID  uuid.UUID `json:"product_id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	PriceCents int       `json:"price_cents"`
	Active     bool      `json:"active"`
}

func newProductResponse(product *models.Product) productResponse {
	return productResponse{
		ProductID:  product.ID,
		SKU:        product.SKU,
		Name:       product.Name,
		PriceCents: product.PriceCents,
		Active:     product.Active,
	}
}

// CreateProduct adds a catalog entry.
func CreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), productsvc.CreateProductInput{
			SKU:        payload.SKU,
			Name:       payload.Name,
			PriceCents: payload.PriceCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newProductResponse(product))
	}
}

// UpdateProduct patches the mutable catalog fields.
func UpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := pathUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Update(r.Context(), productID, productsvc.UpdateProductInput{
			Name:       payload.Name,
			PriceCents: payload.PriceCents,
			Active:     payload.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newProductResponse(product))
	}
}

// ListProducts returns the active catalog.
func ListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		products, err := svc.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]productResponse, 0, len(products))
		for i := range products {
			out = append(out, newProductResponse(&products[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
