package observability

import (
	"time"

	"github.com/boddenberg/chimu-org-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the org-chart service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	storeErrors     *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	linksAdded      *prometheus.CounterVec
	linksRemoved    *prometheus.CounterVec
	stubsCreated    prometheus.Counter
	readRepairs     prometheus.Counter
	requestsTotal   *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chimu_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chimu_store_errors_total",
				Help: "Total customer store failures by operation.",
			},
			[]string{"op"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chimu_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chimu_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		linksAdded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chimu_links_added_total",
				Help: "Counterpart links added by reconciliation.",
			},
			[]string{"direction"},
		),
		linksRemoved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chimu_links_removed_total",
				Help: "Counterpart links removed by reconciliation.",
			},
			[]string{"direction"},
		),
		stubsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "chimu_stubs_created_total",
				Help: "Placeholder customers created for unknown emails.",
			},
		),
		readRepairs: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "chimu_read_repairs_total",
				Help: "Manager reportees patched in memory while serving an org chart.",
			},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chimu_requests_total",
				Help: "Total requests processed.",
			},
			[]string{"status"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrStoreError increments the store error counter.
func (m *Metrics) IncrStoreError(op string) {
	m.storeErrors.WithLabelValues(op).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordReconcile adds the link deltas of one reconciliation run.
func (m *Metrics) RecordReconcile(direction string, added, removed, stubs int) {
	m.linksAdded.WithLabelValues(direction).Add(float64(added))
	m.linksRemoved.WithLabelValues(direction).Add(float64(removed))
	m.stubsCreated.Add(float64(stubs))
}

// AddReadRepairs counts links patched on the read path.
func (m *Metrics) AddReadRepairs(n int) {
	m.readRepairs.Add(float64(n))
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

var (
	snapshotDirections = []string{"managers", "reportees"}
	snapshotStatuses   = []string{"success", "error"}
	snapshotStoreOps   = []string{"find", "find_many", "create", "save", "delete", "ping"}
)

// Snapshot returns the hierarchy counters suitable for the
// GET /api/metrics/hierarchy endpoint.
func (m *Metrics) Snapshot() *domain.HierarchyMetrics {
	out := &domain.HierarchyMetrics{
		Requests:     make(map[string]float64),
		LinksAdded:   make(map[string]float64),
		LinksRemoved: make(map[string]float64),
		StoreErrors:  make(map[string]float64),
		StubsCreated: counterValue(m.stubsCreated),
		ReadRepairs:  counterValue(m.readRepairs),
		Period:       "all_time",
	}
	for _, d := range snapshotDirections {
		out.LinksAdded[d] = getCounterValue(m.linksAdded, d)
		out.LinksRemoved[d] = getCounterValue(m.linksRemoved, d)
	}
	for _, s := range snapshotStatuses {
		out.Requests[s] = getCounterValue(m.requestsTotal, s)
	}
	for _, op := range snapshotStoreOps {
		if v := getCounterValue(m.storeErrors, op); v > 0 {
			out.StoreErrors[op] = v
		}
	}

	hits := getCounterValue(m.cacheHits, "account")
	misses := getCounterValue(m.cacheMisses, "account")
	if hits+misses > 0 {
		out.CacheHitRate = hits / (hits + misses)
	}
	return out
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return counterValue(cv.WithLabelValues(label))
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
