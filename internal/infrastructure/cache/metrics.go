package cache

import "github.com/prometheus/client_golang/prometheus"

// Reasons recorded when a best-effort write is dropped.
const (
	dropCapacity = "capacity"
	dropStore    = "store_error"
	dropEncode   = "encode_error"
)

// Metrics holds the Prometheus collectors shared by every cache instance. Each
// collector is labelled with the cache name. A nil *Metrics records nothing.
type Metrics struct {
	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	writes        *prometheus.CounterVec
	writeDrops    *prometheus.CounterVec
	evictions     *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	blobFetches   *prometheus.CounterVec
}

// NewMetrics creates the cache collectors and registers them on reg when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reader_cache_hits_total",
			Help: "Cache reads served from the store",
		}, []string{"cache"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reader_cache_misses_total",
			Help: "Cache reads that found no fresh entry",
		}, []string{"cache"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reader_cache_writes_total",
			Help: "Cache entries persisted",
		}, []string{"cache"}),
		writeDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reader_cache_write_drops_total",
			Help: "Cache writes silently dropped, by reason",
		}, []string{"cache", "reason"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reader_cache_evictions_total",
			Help: "Entries removed by oldest-first eviction",
		}, []string{"cache"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reader_cache_invalidations_total",
			Help: "Entries removed by explicit invalidation",
		}, []string{"cache"}),
		blobFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reader_cache_blob_fetches_total",
			Help: "Background blob fetches, by result",
		}, []string{"cache", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.writes, m.writeDrops, m.evictions, m.invalidations, m.blobFetches)
	}
	return m
}

func (m *Metrics) hit(cache string) {
	if m != nil {
		m.hits.WithLabelValues(cache).Inc()
	}
}

func (m *Metrics) miss(cache string) {
	if m != nil {
		m.misses.WithLabelValues(cache).Inc()
	}
}

func (m *Metrics) write(cache string) {
	if m != nil {
		m.writes.WithLabelValues(cache).Inc()
	}
}

func (m *Metrics) drop(cache, reason string) {
	if m != nil {
		m.writeDrops.WithLabelValues(cache, reason).Inc()
	}
}

func (m *Metrics) evicted(cache string, n int) {
	if m != nil && n > 0 {
		m.evictions.WithLabelValues(cache).Add(float64(n))
	}
}

func (m *Metrics) invalidated(cache string, n int) {
	if m != nil && n > 0 {
		m.invalidations.WithLabelValues(cache).Add(float64(n))
	}
}

func (m *Metrics) fetched(cache, result string) {
	if m != nil {
		m.blobFetches.WithLabelValues(cache, result).Inc()
	}
}
