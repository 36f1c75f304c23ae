package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/aquatrack/aquatrack/internal/catalog"
	"github.com/aquatrack/aquatrack/internal/customers"
	"github.com/aquatrack/aquatrack/internal/expenses"
	"github.com/aquatrack/aquatrack/internal/observability"
	"github.com/aquatrack/aquatrack/internal/packaging"
	"github.com/aquatrack/aquatrack/internal/payments"
	"github.com/aquatrack/aquatrack/internal/receipt"
	"github.com/aquatrack/aquatrack/internal/reports"
	"github.com/aquatrack/aquatrack/internal/sales"
	"github.com/aquatrack/aquatrack/internal/stock"
	"github.com/aquatrack/aquatrack/internal/users"
	"github.com/aquatrack/aquatrack/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	UsersService     *users.Service
	UsersHandler     *users.Handler
	CatalogHandler   *catalog.Handler
	StockHandler     *stock.Handler
	PackagingHandler *packaging.Handler
	SalesHandler     *sales.Handler
	PaymentsHandler  *payments.Handler
	CustomersHandler *customers.Handler
	ExpensesHandler  *expenses.Handler
	ReportsHandler   *reports.Handler
	ReceiptHandler   *receipt.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with AquaTrack defaults. Everything
// except login, health, and metrics sits behind the bearer token middleware.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.UsersHandler != nil {
		r.Group(params.UsersHandler.MountAuthRoutes)
	}

	r.Group(func(r chi.Router) {
		if params.UsersService != nil {
			r.Use(params.UsersService.Middleware)
		}
		if params.UsersHandler != nil {
			params.UsersHandler.MountRoutes(r)
		}
		if params.CatalogHandler != nil {
			params.CatalogHandler.MountRoutes(r)
		}
		if params.StockHandler != nil {
			params.StockHandler.MountRoutes(r)
		}
		if params.PackagingHandler != nil {
			params.PackagingHandler.MountRoutes(r)
		}
		if params.SalesHandler != nil {
			params.SalesHandler.MountRoutes(r)
		}
		if params.PaymentsHandler != nil {
			params.PaymentsHandler.MountRoutes(r)
		}
		if params.CustomersHandler != nil {
			params.CustomersHandler.MountRoutes(r)
		}
		if params.ExpensesHandler != nil {
			params.ExpensesHandler.MountRoutes(r)
		}
		if params.ReportsHandler != nil {
			params.ReportsHandler.MountRoutes(r)
		}
		if params.ReceiptHandler != nil {
			params.ReceiptHandler.MountRoutes(r)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
