package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ledgerchat"

// Metrics holds the client's prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	sends        *prometheus.CounterVec
	sendDuration prometheus.Histogram
	refreshes    *prometheus.CounterVec
	messages     prometheus.Gauge
	connects     *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Send pipelines by outcome and failed stage.",
		}, []string{"result", "stage", "kind"}),
		sendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Wall time of send pipelines, including finality wait.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120, 300},
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Ledger refreshes by outcome.",
		}, []string{"result", "kind"}),
		messages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "messages",
			Help:      "Records in the reconciled message list.",
		}),
		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_connects_total",
			Help:      "Session connect attempts by resulting status.",
		}, []string{"status"}),
	}

	if reg != nil {
		reg.MustRegister(m.sends, m.sendDuration, m.refreshes, m.messages, m.connects)
	}
	return m
}

// ObserveSend records a finished send. stage and kind are empty on success.
func (m *Metrics) ObserveSend(stage, kind string, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if stage != "" || kind != "" {
		result = "failed"
	}
	m.sends.WithLabelValues(result, stage, kind).Inc()
	m.sendDuration.Observe(d.Seconds())
}

// ObserveRefresh records a successful refresh that produced count records.
func (m *Metrics) ObserveRefresh(count int) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues("ok", "").Inc()
	m.messages.Set(float64(count))
}

// ObserveRefreshFailure records a failed refresh. kind may be empty; the
// messages gauge keeps its last value.
func (m *Metrics) ObserveRefreshFailure(kind string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues("failed", kind).Inc()
}

// ObserveConnect records the status a connect attempt ended in.
func (m *Metrics) ObserveConnect(status string) {
	if m == nil {
		return
	}
	m.connects.WithLabelValues(status).Inc()
}
