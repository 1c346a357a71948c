package httpapi

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/lucasfepe/5G-PollutionMap/internal/archive"
	"github.com/lucasfepe/5G-PollutionMap/internal/metrics"
	"github.com/lucasfepe/5G-PollutionMap/internal/pollution"
)

// RecordSource produces a fresh set of records; *pollution.Collector
// satisfies it.
type RecordSource interface {
	Collect(ctx context.Context) ([]pollution.Record, pollution.Stats, error)
}

// CollectHook runs after every successful upstream collection, not on cache
// hits.
type CollectHook func(ctx context.Context, records []pollution.Record, stats pollution.Stats)

type Deps struct {
	Source    RecordSource
	OnCollect CollectHook
	CacheTTL  time.Duration

	// Optional; nil disables the archive routes and the database health check.
	Archive archive.Repository
	DB      *sql.DB

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func NewMux(deps Deps) *http.ServeMux {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	mux := http.NewServeMux()
	registerHealthcheck(mux, deps)
	registerPollution(mux, deps)
	registerRuns(mux, deps)
	mux.Handle("GET /metrics", deps.Metrics.Handler())
	return mux
}
