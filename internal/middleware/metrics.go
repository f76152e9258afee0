package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"mindsphere-backend/internal/logger"
	"mindsphere-backend/internal/metrics"
)

// Observe records request duration by route pattern and logs each request.
// Routes are labelled with the chi pattern, not the raw path, to keep label
// cardinality bounded.
func Observe(log *logger.Logger) func(http.Handler) http.Handler {
	m := metrics.Get()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			elapsed := time.Since(start)
			m.HTTPRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())

			log.Debug("http request",
				"method", r.Method,
				"route", route,
				"status", status,
				"duration", elapsed.String(),
				"request_id", GetRequestID(r),
			)
		})
	}
}
