package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/warden-auth/warden/internal/identity"
	"github.com/warden-auth/warden/internal/permission"
	"github.com/warden-auth/warden/internal/policy"
	"github.com/warden-auth/warden/internal/principal"
	"github.com/warden-auth/warden/internal/token"
	"github.com/warden-auth/warden/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	TokenHandler      *token.Handler
	IdentityHandler   *identity.Handler
	PrincipalHandler  *principal.Handler
	PolicyHandler     *policy.Handler
	PermissionHandler *permission.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with Warden defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/o", params.TokenHandler.MountRoutes)
	r.Route("/oauth", func(r chi.Router) {
		params.TokenHandler.MountPublicRoutes(r)
		if params.IdentityHandler != nil {
			params.IdentityHandler.MountRoutes(r)
		}
	})
	if params.PrincipalHandler != nil {
		r.Route("/principals", params.PrincipalHandler.MountRoutes)
		r.Route("/groups", params.PrincipalHandler.MountGroupRoutes)
	}
	if params.PolicyHandler != nil {
		r.Route("/policies", params.PolicyHandler.MountRoutes)
	}
	if params.PermissionHandler != nil {
		r.Route("/permissions", params.PermissionHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
