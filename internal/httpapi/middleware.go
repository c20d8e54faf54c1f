package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/TemirB/coursemarket/internal/observability"
)

// observeHTTP reports every request to Metrics.ObserveHTTP under its route
// pattern, so /courses/{idOrSlug} is one series rather than one per course.
func observeHTTP(m observability.Metrics, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			dur := float64(time.Since(start).Microseconds()) / 1000.0

			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			m.ObserveHTTP(r.Method, route, ww.Status(), dur)
			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", ww.Status()),
				zap.Float64("dur_ms", dur),
			)
		})
	}
}

// limit rejects requests once the limiter runs dry. A nil limiter lets
// everything through.
func limit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
