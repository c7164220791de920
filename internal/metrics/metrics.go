package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dustin/edgestat/internal/storage"
)

// Record types used as metric label values.
const (
	TypePageViews = "page_views"
	TypeSessions  = "sessions"
	TypeVisitors  = "visitors"
)

// Metrics holds all Prometheus metrics for edgestat.
type Metrics struct {
	// Ingestion metrics
	EntriesTotal       prometheus.Counter
	ParseErrorsTotal   prometheus.Counter
	BotEntriesTotal    prometheus.Counter
	LastEntryTimestamp prometheus.Gauge

	// Session tracking
	SessionsTracked prometheus.GaugeFunc

	// Loader metrics
	RecordsPersistedTotal *prometheus.CounterVec
	RecordsFailedTotal    *prometheus.CounterVec

	// Database metrics
	DBPageViews prometheus.GaugeFunc
	DBSessions  prometheus.GaugeFunc
	DBVisitors  prometheus.GaugeFunc
}

// cachedTableStats caches the stats provider result so the three table
// gauge funcs trigger one query per scrape rather than three.
type cachedTableStats struct {
	mu       sync.Mutex
	getStats func() storage.TableStats
	cached   storage.TableStats
	cachedAt time.Time
}

func (c *cachedTableStats) get() storage.TableStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.cachedAt) > time.Second {
		c.cached = c.getStats()
		c.cachedAt = time.Now()
	}
	return c.cached
}

// New creates all metrics. sessionCountFunc reports sessions started by
// the live tracker; tableStatsFunc reports database row counts (cached
// for one second).
func New(sessionCountFunc func() int64, tableStatsFunc func() storage.TableStats) *Metrics {
	cache := &cachedTableStats{getStats: tableStatsFunc}

	m := &Metrics{
		EntriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "edgestat",
			Subsystem: "ingest",
			Name:      "entries_total",
			Help:      "Total number of log entries parsed",
		}),
		ParseErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "edgestat",
			Subsystem: "ingest",
			Name:      "parse_errors_total",
			Help:      "Total number of malformed log lines skipped",
		}),
		BotEntriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "edgestat",
			Subsystem: "ingest",
			Name:      "bot_entries_total",
			Help:      "Total number of entries classified as bot traffic",
		}),
		LastEntryTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "edgestat",
			Subsystem: "ingest",
			Name:      "last_entry_timestamp_seconds",
			Help:      "Unix timestamp of the most recently ingested entry",
		}),
		SessionsTracked: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "edgestat",
			Subsystem: "sessions",
			Name:      "tracked",
			Help:      "Sessions started by the tracker in the current run",
		}, func() float64 {
			return float64(sessionCountFunc())
		}),
		RecordsPersistedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgestat",
			Subsystem: "loader",
			Name:      "records_persisted_total",
			Help:      "Records successfully persisted, by record type",
		}, []string{"type"}),
		RecordsFailedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgestat",
			Subsystem: "loader",
			Name:      "records_failed_total",
			Help:      "Records dropped or lost in failed chunks, by record type",
		}, []string{"type"}),
		DBPageViews: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "edgestat",
			Subsystem: "db",
			Name:      "page_views_total",
			Help:      "Total number of rows in the page_views table",
		}, func() float64 {
			return float64(cache.get().PageViews)
		}),
		DBSessions: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "edgestat",
			Subsystem: "db",
			Name:      "sessions_total",
			Help:      "Total number of rows in the sessions table",
		}, func() float64 {
			return float64(cache.get().Sessions)
		}),
		DBVisitors: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "edgestat",
			Subsystem: "db",
			Name:      "visitors_total",
			Help:      "Total number of rows in the visitors table",
		}, func() float64 {
			return float64(cache.get().Visitors)
		}),
	}

	return m
}

// Register registers all metrics with the default Prometheus registry.
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.EntriesTotal,
		m.ParseErrorsTotal,
		m.BotEntriesTotal,
		m.LastEntryTimestamp,
		m.SessionsTracked,
		m.RecordsPersistedTotal,
		m.RecordsFailedTotal,
		m.DBPageViews,
		m.DBSessions,
		m.DBVisitors,
	}
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveEntry records one parsed entry.
func (m *Metrics) ObserveEntry(ts time.Time, isBot bool) {
	m.EntriesTotal.Inc()
	if isBot {
		m.BotEntriesTotal.Inc()
	}
	if !ts.IsZero() {
		m.LastEntryTimestamp.Set(float64(ts.Unix()))
	}
}

// ObserveParseError records one skipped malformed line.
func (m *Metrics) ObserveParseError() {
	m.ParseErrorsTotal.Inc()
}

// ObserveLoad records persisted and failed counts for one record type.
func (m *Metrics) ObserveLoad(recordType string, persisted, submitted int) {
	m.RecordsPersistedTotal.WithLabelValues(recordType).Add(float64(persisted))
	if failed := submitted - persisted; failed > 0 {
		m.RecordsFailedTotal.WithLabelValues(recordType).Add(float64(failed))
	}
}
