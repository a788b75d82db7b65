package controllers

import (
	"net/http"

	"github.com/vendhub/vendhub-backend/api/responses"
	"github.com/vendhub/vendhub-backend/pkg/config"
	"github.com/vendhub/vendhub-backend/pkg/db"
)

// HealthLive reports process liveness only.
func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-VendHub-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness, probing the database when a pinger is
// wired. A nil pinger (tests, partial boot) degrades to liveness.
func HealthReady(cfg *config.Config, pinger db.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-VendHub-Env", cfg.App.Env)
		if pinger != nil {
			if err := pinger.Ping(r.Context()); err != nil {
				responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
				})
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
