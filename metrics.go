package mqtt311

import (
	"time"
)

// MetricType tells counters, gauges and histograms apart.
type MetricType int

const (
	MetricTypeCounter MetricType = iota
	MetricTypeGauge
	MetricTypeHistogram
)

func (t MetricType) String() string {
	switch t {
	case MetricTypeCounter:
		return "counter"
	case MetricTypeGauge:
		return "gauge"
	case MetricTypeHistogram:
		return "histogram"
	}
	return "unknown"
}

// MetricLabels qualify a metric name. Implementations must treat equal
// label sets as the same metric regardless of map order.
type MetricLabels map[string]string

// Metrics hands out metrics by name and labels. Asking twice for the same
// name, labels and type returns the same metric. Implementations must be
// safe for concurrent use and must not modify labels.
type Metrics interface {
	Counter(name string, labels MetricLabels) Counter
	Gauge(name string, labels MetricLabels) Gauge
	Histogram(name string, labels MetricLabels) Histogram
}

// Counter only goes up.
type Counter interface {
	Inc()
	Add(delta float64)
	Value() float64
}

// Gauge holds a value that moves both ways.
type Gauge interface {
	Set(value float64)
	Inc()
	Dec()
	Add(delta float64)
	Sub(delta float64)
	Value() float64
}

// Histogram accumulates observations. Durations are recorded in seconds.
type Histogram interface {
	Observe(value float64)
	ObserveDuration(d time.Duration)
	Count() uint64
	Sum() float64
}

// NoOpMetrics discards everything. It is the default of a Connection.
type NoOpMetrics struct{}

func (NoOpMetrics) Counter(string, MetricLabels) Counter     { return noOpMetric{} }
func (NoOpMetrics) Gauge(string, MetricLabels) Gauge         { return noOpMetric{} }
func (NoOpMetrics) Histogram(string, MetricLabels) Histogram { return noOpMetric{} }

// noOpMetric satisfies Counter, Gauge and Histogram.
type noOpMetric struct{}

func (noOpMetric) Inc()                          {}
func (noOpMetric) Dec()                          {}
func (noOpMetric) Set(float64)                   {}
func (noOpMetric) Add(float64)                   {}
func (noOpMetric) Sub(float64)                   {}
func (noOpMetric) Value() float64                { return 0 }
func (noOpMetric) Observe(float64)               {}
func (noOpMetric) ObserveDuration(time.Duration) {}
func (noOpMetric) Count() uint64                 { return 0 }
func (noOpMetric) Sum() float64                  { return 0 }

// Metric names recorded by a Connection.
const (
	MetricConnections      = "mqtt_client_connections"
	MetricConnectionsTotal = "mqtt_client_connections_total"

	// MetricConnectionErrors counts connections that ended with a
	// transport or stream error instead of a local Close.
	MetricConnectionErrors = "mqtt_client_connection_errors_total"

	MetricPacketsSent     = "mqtt_client_packets_sent_total"
	MetricPacketsReceived = "mqtt_client_packets_received_total"
	MetricBytesSent       = "mqtt_client_bytes_sent_total"
	MetricBytesReceived   = "mqtt_client_bytes_received_total"

	// MetricSendQueueDepth is the number of packets waiting for the writer.
	MetricSendQueueDepth = "mqtt_client_send_queue_depth"

	// MetricWriteLatency is the time one packet write to the transport took.
	MetricWriteLatency = "mqtt_client_write_latency_seconds"
)

// LabelPacketType carries the packet name on the per-type packet counters.
const LabelPacketType = "packet_type"

// packetTypeLabels holds one shared label set per packet type so that
// recording a packet does not build a map.
var packetTypeLabels = func() (labels [PacketReserved15 + 1]MetricLabels) {
	for t := range labels {
		labels[t] = MetricLabels{LabelPacketType: PacketType(t).String()}
	}
	return labels
}()

// ConnectionMetrics records the metrics of one Connection.
type ConnectionMetrics struct {
	metrics Metrics
}

// NewConnectionMetrics wraps m. A nil m records nothing.
func NewConnectionMetrics(m Metrics) *ConnectionMetrics {
	if m == nil {
		m = NoOpMetrics{}
	}
	return &ConnectionMetrics{metrics: m}
}

func (c *ConnectionMetrics) ConnectionOpened() {
	c.metrics.Gauge(MetricConnections, nil).Inc()
	c.metrics.Counter(MetricConnectionsTotal, nil).Inc()
}

// ConnectionClosed records the end of a connection. failed is false only
// for a local Close.
func (c *ConnectionMetrics) ConnectionClosed(failed bool) {
	c.metrics.Gauge(MetricConnections, nil).Dec()
	if failed {
		c.metrics.Counter(MetricConnectionErrors, nil).Inc()
	}
}

// PacketSent records a packet of n bytes whose write took d.
func (c *ConnectionMetrics) PacketSent(packetType PacketType, n int, d time.Duration) {
	c.metrics.Counter(MetricPacketsSent, packetTypeLabels[packetType&0x0F]).Inc()
	c.metrics.Counter(MetricBytesSent, nil).Add(float64(n))
	c.metrics.Histogram(MetricWriteLatency, nil).ObserveDuration(d)
}

// PacketReceived records a decoded packet of n bytes.
func (c *ConnectionMetrics) PacketReceived(packetType PacketType, n int) {
	c.metrics.Counter(MetricPacketsReceived, packetTypeLabels[packetType&0x0F]).Inc()
	c.metrics.Counter(MetricBytesReceived, nil).Add(float64(n))
}

func (c *ConnectionMetrics) QueueDepth(n int) {
	c.metrics.Gauge(MetricSendQueueDepth, nil).Set(float64(n))
}
