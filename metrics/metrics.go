// Package metrics holds the prometheus series exported by producers and
// readers. Nothing is registered until Register is called.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ydb_topic"

var (
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "writer",
		Name:      "messages_sent_total",
		Help:      "Messages written to the stream, replays included",
	})

	Acks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "writer",
		Name:      "acks_total",
		Help:      "Write acks by outcome",
	}, []string{"status"})

	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "writer",
		Name:      "inflight_messages",
		Help:      "Messages sent and awaiting an ack",
	})

	Reconnects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconnects_total",
		Help:      "Session reconnects by component",
	}, []string{"component"})

	BytesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reader",
		Name:      "received_bytes_total",
		Help:      "Bytes accounted in read responses",
	})

	ReadRequestBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reader",
		Name:      "requested_bytes_total",
		Help:      "Bytes of credit granted to the server with read requests",
	})

	Commits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reader",
		Name:      "commits_total",
		Help:      "Commit requests by result",
	}, []string{"result"})

	PartitionSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "reader",
		Name:      "partition_sessions",
		Help:      "Active partition sessions",
	})
)

// Label values
const (
	ComponentWriter = "writer"
	ComponentReader = "reader"

	CommitOK     = "ok"
	CommitClosed = "partition_closed"
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		MessagesSent, Acks, InFlight, Reconnects,
		BytesReceived, ReadRequestBytes, Commits, PartitionSessions,
	}
}

// Register adds all series to reg. Registering twice on the same registry is
// not an error.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
