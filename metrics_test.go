package mqtt311

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricTypeString(t *testing.T) {
	assert.Equal(t, "counter", MetricTypeCounter.String())
	assert.Equal(t, "gauge", MetricTypeGauge.String())
	assert.Equal(t, "histogram", MetricTypeHistogram.String())
	assert.Equal(t, "unknown", MetricType(7).String())
}

func TestNoOpMetrics(t *testing.T) {
	metrics := &NoOpMetrics{}

	t.Run("all operations are no-ops", func(t *testing.T) {
		metrics.Counter("c", nil).Inc()
		metrics.Gauge("g", nil).Set(5)
		metrics.Histogram("h", nil).ObserveDuration(time.Second)

		assert.Zero(t, metrics.Counter("c", nil).Value())
		assert.Zero(t, metrics.Gauge("g", nil).Value())
		assert.Zero(t, metrics.Histogram("h", nil).Count())
	})
}

func TestConnectionMetrics(t *testing.T) {
	t.Run("connections", func(t *testing.T) {
		m := NewMemoryMetrics()
		cm := NewConnectionMetrics(m)

		cm.ConnectionOpened()
		cm.ConnectionOpened()
		cm.ConnectionClosed(false)
		cm.ConnectionClosed(true)

		assert.Equal(t, float64(0), m.Gauge(MetricConnections, nil).Value())
		assert.Equal(t, float64(2), m.Counter(MetricConnectionsTotal, nil).Value())
		assert.Equal(t, float64(1), m.Counter(MetricConnectionErrors, nil).Value())
	})

	t.Run("packets", func(t *testing.T) {
		m := NewMemoryMetrics()
		cm := NewConnectionMetrics(m)

		cm.PacketSent(PacketCONNECT, 14, time.Millisecond)
		cm.PacketSent(PacketPINGREQ, 2, time.Millisecond)
		cm.PacketSent(PacketPINGREQ, 2, time.Millisecond)
		cm.PacketReceived(PacketCONNACK, 4)

		assert.Equal(t, float64(1), m.Counter(MetricPacketsSent, MetricLabels{LabelPacketType: "CONNECT"}).Value())
		assert.Equal(t, float64(2), m.Counter(MetricPacketsSent, MetricLabels{LabelPacketType: "PINGREQ"}).Value())
		assert.Equal(t, float64(18), m.Counter(MetricBytesSent, nil).Value())
		assert.Equal(t, float64(1), m.Counter(MetricPacketsReceived, MetricLabels{LabelPacketType: "CONNACK"}).Value())
		assert.Equal(t, float64(4), m.Counter(MetricBytesReceived, nil).Value())

		latency := m.GetHistogram(MetricWriteLatency, nil)
		require.NotNil(t, latency)
		assert.Equal(t, uint64(3), latency.Count())
	})

	t.Run("queue depth", func(t *testing.T) {
		m := NewMemoryMetrics()
		NewConnectionMetrics(m).QueueDepth(7)

		assert.Equal(t, float64(7), m.Gauge(MetricSendQueueDepth, nil).Value())
	})

	t.Run("packet type labels are shared", func(t *testing.T) {
		cm := NewConnectionMetrics(nil)

		allocs := testing.AllocsPerRun(100, func() {
			cm.PacketReceived(PacketPUBLISH, 9)
			cm.PacketSent(PacketPINGREQ, 2, time.Microsecond)
		})
		assert.Zero(t, allocs)

		assert.Equal(t, "PUBLISH", packetTypeLabels[PacketPUBLISH][LabelPacketType])
		assert.Equal(t, "UNKNOWN", packetTypeLabels[PacketReserved15][LabelPacketType])
	})

	t.Run("nil metrics", func(t *testing.T) {
		cm := NewConnectionMetrics(nil)
		assert.NotPanics(t, func() {
			cm.ConnectionOpened()
			cm.PacketSent(PacketCONNECT, 1, 0)
		})
	})
}
