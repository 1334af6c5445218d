package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/chimu-org-go/internal/domain"
	"github.com/boddenberg/chimu-org-go/internal/infra/observability"
	"github.com/boddenberg/chimu-org-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures NewRouter.
type Options struct {
	// JWTSecret enables bearer token checks on /api when non-empty.
	JWTSecret string
	// Store is pinged by /healthz and /readyz. May be nil.
	Store Pinger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc *service.CustomerService, opts Options, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.MetricsMiddleware(metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(opts.Store))
	r.Get("/readyz", readyzHandler(opts.Store))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API ---
	r.Route("/api", func(r chi.Router) {
		if opts.JWTSecret != "" {
			r.Use(JWTAuthMiddleware([]byte(opts.JWTSecret), logger))
		}

		// =============================================
		// Customers
		// =============================================
		r.Route("/customer", func(r chi.Router) {
			r.Post("/", upsertCustomerHandler(svc, logger))
			r.Get("/", listCustomersHandler(svc, logger))
			r.Post("/bulk-update", bulkUpdateHandler(svc, logger))
			r.Get("/tree/{email}", customerTreeHandler(svc, logger))
			r.Get("/account/{accountId}", customersByAccountHandler(svc, logger))
			r.Get("/{email}", getCustomerHandler(svc, logger))
			r.Put("/{email}", putCustomerHandler(svc, logger))
			r.Delete("/{email}", deleteCustomerHandler(svc, logger))
		})

		// =============================================
		// Org chart
		// =============================================
		r.Route("/org-chart/{accountId}", func(r chi.Router) {
			r.Get("/", orgChartHandler(svc, logger))
			r.Get("/layout", orgChartLayoutHandler(svc, logger))
			r.Post("/repair", repairHandler(svc, logger))
		})

		r.Get("/metrics/hierarchy", hierarchyMetricsHandler(metrics))
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)
		services := []domain.ServiceHealth{
			{Name: "chimu-api", Status: "healthy", LastChecked: now},
		}

		if store != nil {
			start := time.Now()
			err := store.Ping(r.Context())
			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "customer-store", Status: status,
				LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overallStatus = s.Status
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func hierarchyMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
