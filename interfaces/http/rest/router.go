// Package rest wires the HTTP surface: routing, middleware, and the
// health and metrics endpoints.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"engram-backend/interfaces/http/rest/handlers"
	"engram-backend/interfaces/http/rest/middleware"
	"engram-backend/pkg/auth"
	"engram-backend/pkg/observability"
)

// Options configures the router
type Options struct {
	Validator     *auth.JWTValidator
	Metrics       *observability.Collector
	EnableCORS    bool
	EnableMetrics bool
}

// Router assembles the HTTP surface
type Router struct {
	memories   *handlers.MemoryHandler
	search     *handlers.SearchHandler
	graph      *handlers.GraphHandler
	operations *handlers.OperationHandler
	logger     *zap.Logger
	opts       Options
}

// NewRouter creates a router over the endpoint handlers
func NewRouter(
	memories *handlers.MemoryHandler,
	search *handlers.SearchHandler,
	graph *handlers.GraphHandler,
	operations *handlers.OperationHandler,
	logger *zap.Logger,
	opts Options,
) *Router {
	return &Router{
		memories:   memories,
		search:     search,
		graph:      graph,
		operations: operations,
		logger:     logger,
		opts:       opts,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.opts.EnableMetrics && rt.opts.Metrics != nil {
		router.Use(middleware.Metrics(rt.opts.Metrics))
	}

	if rt.opts.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000"},
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.opts.EnableMetrics && rt.opts.Metrics != nil {
		router.Handle("/metrics", promhttp.HandlerFor(
			rt.opts.Metrics.GetRegistry(), promhttp.HandlerOpts{}))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.opts.Validator, rt.logger))

		r.Route("/owners/{ownerID}", func(r chi.Router) {
			r.Route("/memories", func(r chi.Router) {
				r.Post("/", rt.memories.Ingest)
				r.Get("/", rt.memories.List)
				r.Get("/{memoryID}", rt.memories.Get)
				r.Delete("/{memoryID}", rt.memories.Delete)
			})

			r.Route("/search", func(r chi.Router) {
				r.Post("/semantic", rt.search.Semantic)
				r.Post("/graph", rt.search.Graph)
				r.Post("/hybrid", rt.search.Hybrid)
			})

			r.Get("/graph/stats", rt.graph.Stats)
		})

		r.Get("/operations/{operationID}", rt.operations.Get)
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
