package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for reconciled events.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

type PipelineMetrics struct {
	eventsProcessed *prometheus.CounterVec
	contentStore    *prometheus.CounterVec
	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	cursorBlock     *prometheus.GaugeVec
	lastHeartbeat   prometheus.Gauge
	aggregateTotal  prometheus.Counter
	detailDegraded  prometheus.Counter
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

func Pipeline() *PipelineMetrics {
	return PipelineWithConfig(Config{})
}

func PipelineWithConfig(cfg Config) *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = NewPipelineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return pipelineMetrics
}

// NewPipelineMetrics registers the reconciliation instruments on registerer.
func NewPipelineMetrics(registerer prometheus.Registerer, cfg Config) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "claimsync"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	eventsProcessed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "claimsync_reconcile_events_total",
			Help:        "Chain events handled by the reconciliation engine.",
			ConstLabels: constLabels,
		},
		[]string{"kind", "outcome"}, // applied | duplicate | skipped | failed
	)

	contentStore := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "claimsync_content_store_uploads_total",
			Help:        "Payment summary uploads to the content store.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // stored | failed
	)

	cycles := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "claimsync_poller_cycles_total",
			Help:        "Polling cycles by result.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // ok | source_unavailable | error
	)

	cycleDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:        "claimsync_poller_cycle_duration_seconds",
			Help:        "Wall time of one poll-and-apply cycle.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			ConstLabels: constLabels,
		},
	)

	cursorBlock := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "claimsync_poller_cursor_block",
			Help:        "Last fully processed block per event kind.",
			ConstLabels: constLabels,
		},
		[]string{"kind"},
	)

	lastHeartbeat := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:        "claimsync_poller_last_heartbeat_timestamp_seconds",
			Help:        "Unix time of the last completed polling cycle.",
			ConstLabels: constLabels,
		},
	)

	aggregateTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "claimsync_payer_aggregate_increments_total",
			Help:        "Payer aggregate increments gated on a winning payment insert.",
			ConstLabels: constLabels,
		},
	)

	detailDegraded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "claimsync_tx_detail_unavailable_total",
			Help:        "Payments recorded without transaction cost metadata.",
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(
		eventsProcessed,
		contentStore,
		cycles,
		cycleDuration,
		cursorBlock,
		lastHeartbeat,
		aggregateTotal,
		detailDegraded,
	)

	return &PipelineMetrics{
		eventsProcessed: eventsProcessed,
		contentStore:    contentStore,
		cycles:          cycles,
		cycleDuration:   cycleDuration,
		cursorBlock:     cursorBlock,
		lastHeartbeat:   lastHeartbeat,
		aggregateTotal:  aggregateTotal,
		detailDegraded:  detailDegraded,
	}
}

func (m *PipelineMetrics) IncEvent(kind, outcome string) {
	if m == nil {
		return
	}
	m.eventsProcessed.WithLabelValues(kind, outcome).Inc()
}

func (m *PipelineMetrics) IncContentStore(result string) {
	if m == nil {
		return
	}
	m.contentStore.WithLabelValues(result).Inc()
}

func (m *PipelineMetrics) IncAggregate() {
	if m == nil {
		return
	}
	m.aggregateTotal.Inc()
}

func (m *PipelineMetrics) IncDetailUnavailable() {
	if m == nil {
		return
	}
	m.detailDegraded.Inc()
}

func (m *PipelineMetrics) ObserveCycle(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(duration.Seconds())
}

func (m *PipelineMetrics) SetCursor(kind string, block uint64) {
	if m == nil {
		return
	}
	m.cursorBlock.WithLabelValues(kind).Set(float64(block))
}

func (m *PipelineMetrics) SetHeartbeat(at time.Time) {
	if m == nil {
		return
	}
	m.lastHeartbeat.Set(float64(at.Unix()))
}
