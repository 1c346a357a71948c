package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lucasfepe/5G-PollutionMap/internal/pollution"
)

// Metrics methods are safe on a nil receiver so callers can run without them.
type Metrics struct {
	reg *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	collections       *prometheus.CounterVec
	collectDuration   prometheus.Histogram
	recordsEmitted    prometheus.Counter
	measurementsDrop  prometheus.Counter
	locationsSeen     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total record cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total record cache misses.",
		}),
		collections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pollution_collections_total",
			Help: "Collection runs against the OpenAQ API by result.",
		}, []string{"result"}),
		collectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pollution_collection_duration_seconds",
			Help:    "Duration of a full collection run.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
		recordsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pollution_records_emitted_total",
			Help: "Pollution records produced by successful collections.",
		}),
		measurementsDrop: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pollution_measurements_dropped_total",
			Help: "Measurements skipped because no sensor on the location matched.",
		}),
		locationsSeen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pollution_locations",
			Help: "Locations returned by the last successful collection.",
		}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.cacheHits,
		m.cacheMisses,
		m.collections,
		m.collectDuration,
		m.recordsEmitted,
		m.measurementsDrop,
		m.locationsSeen,
	)
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// Collection records the outcome of one collector run.
func (m *Metrics) Collection(d time.Duration, stats pollution.Stats, err error) {
	if m == nil {
		return
	}
	m.collectDuration.Observe(d.Seconds())
	if err != nil {
		m.collections.WithLabelValues("error").Inc()
		return
	}
	m.collections.WithLabelValues("ok").Inc()
	m.recordsEmitted.Add(float64(stats.Records))
	m.measurementsDrop.Add(float64(stats.Dropped))
	m.locationsSeen.Set(float64(stats.Locations))
}
