// Package metrics exposes Prometheus collectors for the relay. Served by
// the HTTP router at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JoinsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "castform",
		Subsystem: "relay",
		Name:      "joins_total",
		Help:      "Successful session joins.",
	})

	LeavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "castform",
		Subsystem: "relay",
		Name:      "leaves_total",
		Help:      "Participants removed from a room (leave or disconnect).",
	})

	SignalsRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "castform",
		Subsystem: "relay",
		Name:      "signals_relayed_total",
		Help:      "Negotiation payloads forwarded between connections.",
	})

	DeliveriesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "castform",
		Subsystem: "relay",
		Name:      "deliveries_dropped_total",
		Help:      "Events not delivered because the target was gone or slow.",
	})

	OpenRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "castform",
		Subsystem: "relay",
		Name:      "open_rooms",
		Help:      "Rooms with at least one participant.",
	})

	ConnectedParticipants = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "castform",
		Subsystem: "relay",
		Name:      "connected_participants",
		Help:      "Live entries in the connection registry.",
	})
)
