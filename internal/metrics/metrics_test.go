package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveSendAndRefresh(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSend("", "", time.Second)
	m.ObserveSend("submit", "submission_rejected", time.Second)
	m.ObserveRefresh(3)
	m.ObserveRefreshFailure("read_error")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sends.WithLabelValues("ok", "", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sends.WithLabelValues("failed", "submit", "submission_rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("failed", "read_error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.messages))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveSend("resolve", "store_unavailable", time.Millisecond)
	m.ObserveRefresh(1)
	m.ObserveRefreshFailure("")
	m.ObserveConnect("connected")
}

func TestKindlessRefreshFailureIsNotSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRefresh(4)
	m.ObserveRefreshFailure("")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("ok", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("failed", "")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.messages), "failure must not reset the gauge")
}
