package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersAreRegisteredOnInjectedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveMutation("machine", "CREATE", "ok", 3*time.Millisecond)
	m.IncSignature("duplicate")
	m.IncOutbox("success")
	m.IncOutbox("success")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MutationTotal.WithLabelValues("machine", "CREATE", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignatureTotal.WithLabelValues("duplicate")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxDispatched.WithLabelValues("success")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveMutation("machine", "CREATE", "ok", time.Second)
	m.IncSignature("ok")
	m.IncOutbox("dead")
}
