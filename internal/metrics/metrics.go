// Package metrics provides Prometheus instrumentation for the collaboration
// chat server. It exposes gauges for connection and presence counts, counters
// for message and broadcast throughput, and histograms for match computation
// and assistant reply latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "collab_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// OnlineIdentities tracks the number of distinct identities with at
	// least one live connection.
	OnlineIdentities = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "collab_online_identities",
		Help: "Current number of distinct online identities",
	})

	// MessagesTotal counts messages appended to the store, labeled by kind:
	// "user", "assistant", or "system".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_messages_total",
		Help: "Total number of messages appended",
	}, []string{"kind"})

	// BroadcastDeliveries counts per-connection delivery attempts, labeled
	// by outcome: "delivered" or "dropped".
	BroadcastDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_broadcast_deliveries_total",
		Help: "Per-connection broadcast delivery attempts",
	}, []string{"outcome"})

	// MatchComputeDuration records the time spent computing a match request.
	MatchComputeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "collab_match_compute_seconds",
		Help:    "Time spent computing matches for one request",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
	})

	// MatchesReturned counts matches returned across all requests.
	MatchesReturned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "collab_matches_returned_total",
		Help: "Total matches returned to requesters",
	})

	// AssistantReplyLatency records the time from assistant command receipt
	// to reply publication, including the simulated thinking delay.
	AssistantReplyLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "collab_assistant_reply_seconds",
		Help:    "Time from assistant command to reply publication",
		Buckets: []float64{.5, 1, 1.5, 2, 3, 5},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		OnlineIdentities,
		MessagesTotal,
		BroadcastDeliveries,
		MatchComputeDuration,
		MatchesReturned,
		AssistantReplyLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
