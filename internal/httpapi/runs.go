package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lucasfepe/5G-PollutionMap/internal/archive"
	"github.com/lucasfepe/5G-PollutionMap/internal/pollution"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

type runsHandler struct {
	repo   archive.Repository
	logger *slog.Logger
}

type latestRunResponse struct {
	Run     archive.Run        `json:"run"`
	Records []pollution.Record `json:"records"`
}

func (h *runsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusNotFound, "archive is disabled")
		return
	}

	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxRunsLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	runs, err := h.repo.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *runsHandler) handleLatest(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusNotFound, "archive is disabled")
		return
	}

	run, records, err := h.repo.LatestRun(r.Context())
	if errors.Is(err, archive.ErrNoRuns) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("latest run", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load latest run")
		return
	}
	writeJSON(w, http.StatusOK, latestRunResponse{Run: run, Records: records})
}

func registerRuns(mux *http.ServeMux, deps Deps) {
	h := &runsHandler{repo: deps.Archive, logger: deps.Logger}
	mux.Handle("GET /api/runs", deps.Metrics.WrapHandler("/api/runs", http.HandlerFunc(h.handleList)))
	mux.Handle("GET /api/runs/latest", deps.Metrics.WrapHandler("/api/runs/latest", http.HandlerFunc(h.handleLatest)))
}
