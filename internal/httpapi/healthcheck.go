package httpapi

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"
)

type healthchecker struct {
	db     *sql.DB
	logger *slog.Logger
}

func (h *healthchecker) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		var ok int
		if err := h.db.QueryRowContext(ctx, `SELECT 1`).Scan(&ok); err != nil {
			h.logger.Error("failed to check database connectivity", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to check database connectivity")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func registerHealthcheck(mux *http.ServeMux, deps Deps) {
	h := &healthchecker{db: deps.DB, logger: deps.Logger}
	mux.Handle("GET /healthz", deps.Metrics.WrapHandler("/healthz", http.HandlerFunc(h.handleHealthz)))
}
