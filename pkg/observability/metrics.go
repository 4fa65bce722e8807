package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalCollector *Collector
	collectorMutex  sync.Mutex
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Ingestion metrics
	MemoriesIngested     prometheus.Counter
	MemoriesDeleted      prometheus.Counter
	MemoriesDeduplicated prometheus.Counter
	EntitiesCreated      prometheus.Counter
	EntitiesMerged       prometheus.Counter
	ResolutionConflicts  prometheus.Counter
	IndexRepairs         prometheus.Counter

	// Query metrics
	SearchRequests *prometheus.CounterVec
	SearchDuration *prometheus.HistogramVec
}

// NewCollector creates a metrics collector with the given namespace.
// The collector is a process-wide singleton so repeated construction in
// tests does not trip duplicate registration.
func NewCollector(namespace string) *Collector {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()

	if globalCollector != nil {
		return globalCollector
	}

	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	memoriesIngested := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_ingested_total",
			Help:      "Total number of memories fully ingested and indexed",
		},
	)

	memoriesDeleted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_deleted_total",
			Help:      "Total number of memories tombstoned",
		},
	)

	memoriesDeduplicated := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_deduplicated_total",
			Help:      "Total number of ingest requests short-circuited by digest dedup",
		},
	)

	entitiesCreated := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_created_total",
			Help:      "Total number of new graph entities created by resolution",
		},
	)

	entitiesMerged := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_merged_total",
			Help:      "Total number of extraction candidates merged into existing entities",
		},
	)

	resolutionConflicts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolution_conflicts_total",
			Help:      "Total number of ambiguous resolutions decided by the tie-break rule",
		},
	)

	indexRepairs := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_repairs_total",
			Help:      "Total number of memories re-indexed by the repair pass",
		},
	)

	searchRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of search requests by kind",
		},
		[]string{"kind", "status"},
	)

	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search request duration in seconds by kind",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	registry.MustRegister(
		httpRequests,
		httpDuration,
		memoriesIngested,
		memoriesDeleted,
		memoriesDeduplicated,
		entitiesCreated,
		entitiesMerged,
		resolutionConflicts,
		indexRepairs,
		searchRequests,
		searchDuration,
	)

	globalCollector = &Collector{
		registry:             registry,
		HTTPRequests:         httpRequests,
		HTTPDuration:         httpDuration,
		MemoriesIngested:     memoriesIngested,
		MemoriesDeleted:      memoriesDeleted,
		MemoriesDeduplicated: memoriesDeduplicated,
		EntitiesCreated:      entitiesCreated,
		EntitiesMerged:       entitiesMerged,
		ResolutionConflicts:  resolutionConflicts,
		IndexRepairs:         indexRepairs,
		SearchRequests:       searchRequests,
		SearchDuration:       searchDuration,
	}

	return globalCollector
}

// ResetForTesting resets the global collector for testing purposes
func ResetForTesting() {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()
	globalCollector = nil
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}
