package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gescom-app/gescom/internal/auth"
	"github.com/gescom-app/gescom/internal/billing"
	"github.com/gescom-app/gescom/internal/catalog"
	"github.com/gescom-app/gescom/internal/consolidation"
	"github.com/gescom-app/gescom/internal/customers"
	"github.com/gescom-app/gescom/internal/documents"
	"github.com/gescom-app/gescom/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthService *auth.Service

	AuthHandler          *auth.Handler
	DocumentHandler      *documents.Handler
	BillingHandler       *billing.Handler
	ConsolidationHandler *consolidation.Handler
	CatalogHandler       *catalog.Handler
	CustomerHandler      *customers.Handler
	ReportHandler        *report.Handler
}

// NewRouter constructs the chi.Router. Everything under /api/v1 except
// login requires a bearer token.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(params.Logger, params.Config) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(params.AuthService.RequireToken)

			params.DocumentHandler.MountRoutes(r)
			params.BillingHandler.MountRoutes(r)
			params.ConsolidationHandler.MountRoutes(r)
			params.CatalogHandler.MountRoutes(r)
			params.CustomerHandler.MountRoutes(r)
			if params.ReportHandler != nil {
				params.ReportHandler.MountRoutes(r)
			}
		})
	})

	return r
}
