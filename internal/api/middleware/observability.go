package middleware

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/observability"
)

const unmatchedRoute = "unmatched"

// ObservabilityMiddleware traces each request and records the request metrics.
// The span is renamed to the mux pattern once routing has happened so raw ids
// never become span names or metric labels.
func ObservabilityMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := observability.StartSpan(r.Context(), "HTTP "+r.Method)
			defer span.End()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			req := r.WithContext(ctx)

			start := time.Now()
			next.ServeHTTP(rw, req)
			duration := time.Since(start)

			route := req.Pattern
			if route == "" {
				route = unmatchedRoute
			} else {
				span.SetName(route)
			}

			observability.SetSpanAttributes(span,
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.user_agent", r.UserAgent()),
				attribute.Int("http.status_code", rw.statusCode),
			)
			observability.RecordRequestMetric(ctx, metrics, r.Method, route, rw.statusCode, duration)
		})
	}
}

// responseWriter captures the status code. It forwards Flush so event streams keep working.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
