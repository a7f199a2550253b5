// Package metrics exposes Prometheus collectors for the chat client.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "chat_client"

// Metrics groups the collectors updated by the connection manager and the
// chat session.
type Metrics struct {
	FramesSent      prometheus.Counter
	FramesReceived  prometheus.Counter
	DecodeErrors    prometheus.Counter
	StaleSnapshots  prometheus.Counter
	SendRejected    *prometheus.CounterVec
	ConnectionState prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests and library callers without a
// metrics endpoint want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames written to the chat connection.",
		}),
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Frames read from the chat connection.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Inbound frames dropped because they could not be decoded.",
		}),
		StaleSnapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_snapshots_discarded_total",
			Help:      "Snapshots discarded because they answer a conversation that is no longer active.",
		}),
		SendRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_rejected_total",
			Help:      "Outgoing frames rejected before reaching the connection, by reason.",
		}, []string{"reason"}),
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Current connection state (0 idle, 1 connecting, 2 open, 3 closed, 4 errored).",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.FramesSent,
			m.FramesReceived,
			m.DecodeErrors,
			m.StaleSnapshots,
			m.SendRejected,
			m.ConnectionState,
		)
	}
	return m
}
