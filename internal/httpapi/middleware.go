package httpapi

import (
	"log/slog"
	"net/http"
	"time"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// requestLogger logs one line per request. Record endpoints add the number of
// records served and whether they came from the cache.
func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)

		attrs := []any{
			"method", r.Method,
			"route", routeLabel(r),
			"status", sr.status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if n := sr.Header().Get(headerRecordCount); n != "" {
			attrs = append(attrs, "records", n)
		}
		if c := sr.Header().Get(headerCache); c != "" {
			attrs = append(attrs, "cache", c)
		}

		level := slog.LevelInfo
		if sr.status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(r.Context(), level, "http request", attrs...)
	})
}

// routeLabel is the matched mux pattern, or the raw path when nothing matched.
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return r.URL.Path
}
