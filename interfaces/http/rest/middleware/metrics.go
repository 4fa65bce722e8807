package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"engram-backend/pkg/observability"
)

// Metrics records request counts and latencies per route pattern. Route
// patterns rather than raw paths keep the label cardinality bounded.
func Metrics(collector *observability.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			collector.HTTPRequests.WithLabelValues(
				r.Method, route, strconv.Itoa(ww.Status()),
			).Inc()
			collector.HTTPDuration.WithLabelValues(r.Method, route).
				Observe(time.Since(start).Seconds())
		})
	}
}
