package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for watches and backfills. A nil
// *Metrics records nothing.
type Metrics struct {
	WatchesActive      *prometheus.GaugeVec
	TicksTotal         *prometheus.CounterVec
	RequestErrorsTotal *prometheus.CounterVec
	LogsDeliveredTotal *prometheus.CounterVec
	DecodeErrorsTotal  prometheus.Counter
	BackfillLastBlock  prometheus.Gauge
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "logwatch"
	}
	factory := promauto.With(reg)

	return &Metrics{
		WatchesActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watches_active",
			Help:      "Current number of live watch executions",
		}, []string{"kind", "strategy"}),
		TicksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Total number of poll ticks by mode",
		}, []string{"mode"}),
		RequestErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_errors_total",
			Help:      "Total number of failed JSON-RPC requests by method",
		}, []string{"method"}),
		LogsDeliveredTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logs_delivered_total",
			Help:      "Total number of logs delivered to listeners",
		}, []string{"strategy"}),
		DecodeErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Total number of log records that failed to decode",
		}),
		BackfillLastBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backfill_last_block",
			Help:      "Last block fully processed by the backfill",
		}),
	}
}

func (m *Metrics) WatchStarted(kind, strategy string) {
	if m == nil {
		return
	}
	m.WatchesActive.WithLabelValues(kind, strategy).Inc()
}

func (m *Metrics) WatchStopped(kind, strategy string) {
	if m == nil {
		return
	}
	m.WatchesActive.WithLabelValues(kind, strategy).Dec()
}

func (m *Metrics) RecordTick(mode string) {
	if m == nil {
		return
	}
	m.TicksTotal.WithLabelValues(mode).Inc()
}

func (m *Metrics) RecordRequestError(method string) {
	if m == nil {
		return
	}
	m.RequestErrorsTotal.WithLabelValues(method).Inc()
}

func (m *Metrics) RecordDelivered(strategy string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.LogsDeliveredTotal.WithLabelValues(strategy).Add(float64(n))
}

func (m *Metrics) RecordDecodeErrors(n int) {
	if m == nil || n == 0 {
		return
	}
	m.DecodeErrorsTotal.Add(float64(n))
}

func (m *Metrics) SetBackfillBlock(block uint64) {
	if m == nil {
		return
	}
	m.BackfillLastBlock.Set(float64(block))
}
