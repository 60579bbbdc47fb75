/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Request counter by route pattern and status
  5. CORS:       Cross-origin requests for a browser frontend
  6. Write limit: token bucket shared by all POST/PUT requests (429 when empty)

ROUTE GROUPS:
  /api/inventory/*   Inventory replace, import, export
  /api/runs/*        Planning runs
  /api/plan          Stateless dry run
  /api/orders/*      Staged order queue and dispatch
  /api/scenarios/*   Demo warehouses
  /metrics           Prometheus
  /healthz           Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/warp/pick-engine/metrics"
)

// DefaultCORSOrigins is used when RouterOptions has no origins.
var DefaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// RouterOptions configures NewRouter. The zero value is usable.
type RouterOptions struct {
	CORSOrigins []string

	// WriteRate is the sustained rate of POST/PUT requests per second.
	// 0 disables the limit.
	WriteRate  float64
	WriteBurst int
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	corsOrigins := opts.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = DefaultCORSOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(countRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	if opts.WriteRate > 0 {
		burst := opts.WriteBurst
		if burst < 1 {
			burst = 1
		}
		r.Use(limitWrites(rate.NewLimiter(rate.Limit(opts.WriteRate), burst)))
	}

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", h.GetInventory)
			r.Put("/", h.ReplaceInventory)
			r.Post("/import", h.ImportInventory)
			r.Get("/export", h.ExportInventory)
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.Post("/", h.CreateRun)
			r.Get("/{id}", h.GetRun)
		})

		r.Post("/plan", h.DryRun)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListPendingOrders)
			r.Post("/", h.StageOrders)
			r.Post("/dispatch", h.DispatchNow)
		})
		r.Get("/dispatch", h.DispatchStatus)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// countRequests records every request by its route pattern, so /api/runs/{id}
// stays one series however many IDs are requested.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.ObserveHTTP(r.Method, route, status)
	})
}

// limitWrites rejects mutating requests once the limiter is out of tokens.
func limitWrites(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
			default:
				if !l.Allow() {
					w.Header().Set("Retry-After", "1")
					writeError(w, http.StatusTooManyRequests, "Too many write requests", nil)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
