package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vendhub/vendhub-backend/api/responses"
	"github.com/vendhub/vendhub-backend/api/validators"
	usersvc "github.com/vendhub/vendhub-backend/internal/users"
	pkgauth "github.com/vendhub/vendhub-backend/pkg/auth"
	"github.com/vendhub/vendhub-backend/pkg/config"
	pkgerrors "github.com/vendhub/vendhub-backend/pkg/errors"
	"github.com/vendhub/vendhub-backend/pkg/logger"
)

type registerRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required,min=1,max=120"`
}

type registerResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	AccessToken string    `json:"access_token"`
}

type meResponse struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
}

// Register creates a user and hands back a signed access token so clients
// can exercise the authenticated surface immediately.
func Register(svc usersvc.Service, jwtCfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		var payload registerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Register(r.Context(), usersvc.RegisterInput{
			Email: payload.Email,
			Name:  payload.Name,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		token, err := pkgauth.MintAccessToken(jwtCfg, time.Now().UTC(), user.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token"))
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, registerResponse{
			UserID:      user.ID,
			Email:       user.Email,
			Name:        user.Name,
			AccessToken: token,
		})
	}
}

// Me returns the authenticated user's profile.
func Me(svc usersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, meResponse{
			UserID: user.ID,
			Email:  user.Email,
			Name:   user.Name,
		})
	}
}
