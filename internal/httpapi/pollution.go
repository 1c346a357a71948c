package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/lucasfepe/5G-PollutionMap/internal/cache"
	"github.com/lucasfepe/5G-PollutionMap/internal/metrics"
	"github.com/lucasfepe/5G-PollutionMap/internal/pollution"
)

const recordsCacheKey = "calgary"

const (
	headerRecordCount = "X-Record-Count"
	headerCache       = "X-Cache"
)

type pollutionHandler struct {
	source    RecordSource
	onCollect CollectHook
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cache     *cache.Cache[[]pollution.Record]

	// mu serialises upstream collections so concurrent misses share one run.
	mu sync.Mutex
}

func newPollutionHandler(deps Deps) *pollutionHandler {
	return &pollutionHandler{
		source:    deps.Source,
		onCollect: deps.OnCollect,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		cache:     cache.New[[]pollution.Record](deps.CacheTTL, deps.Metrics),
	}
}

func (h *pollutionHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	interpolate := false
	if v := r.URL.Query().Get("interpolate"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "interpolate must be a boolean")
			return
		}
		interpolate = b
	}

	records, hit, err := h.records(r.Context())
	if err != nil {
		h.logger.Error("collect pollution records", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if interpolate {
		records = pollution.Interpolate(records)
	}
	w.Header().Set(headerRecordCount, strconv.Itoa(len(records)))
	if hit {
		w.Header().Set(headerCache, "HIT")
	} else {
		w.Header().Set(headerCache, "MISS")
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *pollutionHandler) records(ctx context.Context) ([]pollution.Record, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if recs, ok := h.cache.Get(recordsCacheKey); ok {
		return recs, true, nil
	}

	start := time.Now()
	recs, stats, err := h.source.Collect(ctx)
	h.metrics.Collection(time.Since(start), stats, err)
	if err != nil {
		return nil, false, err
	}

	h.cache.Set(recordsCacheKey, recs)
	if h.onCollect != nil {
		h.onCollect(context.WithoutCancel(ctx), recs, stats)
	}
	return recs, false, nil
}

func registerPollution(mux *http.ServeMux, deps Deps) {
	h := newPollutionHandler(deps)
	mux.Handle("GET /api/pollution", deps.Metrics.WrapHandler("/api/pollution", http.HandlerFunc(h.handleGet)))
}
