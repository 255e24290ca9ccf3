package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordBroadcast(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordReceive("1")
	m.RecordReceive("1")
	m.RecordBroadcast("1", 2, 1, 1, time.Millisecond)
	m.RecordBroadcast("2", 3, 0, 0, time.Millisecond)
	m.UpdateState("1", 5, 3)
	m.RecordSendFailure("2")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReceivedTotal.WithLabelValues("1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SentTotal.WithLabelValues("1")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SentTotal.WithLabelValues("2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SuppressedTotal.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SendErrorsTotal.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SendErrorsTotal.WithLabelValues("2")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.Round.WithLabelValues("1")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.InboxSize.WithLabelValues("1")))
}
