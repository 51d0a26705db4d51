package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cns_agent_commands_total",
			Help: "Total number of commands handled",
		},
		[]string{"action", "status"}, // ok or error
	)

	commandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cns_agent_command_duration_seconds",
			Help:    "Time taken to handle a command",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"action"},
	)

	publishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cns_agent_publishes_total",
			Help: "Total number of SYNC_PARTIAL envelopes per domain",
		},
		[]string{"domain"},
	)

	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cns_agent_scans_total",
			Help: "Total number of rescans per lane",
		},
		[]string{"lane"},
	)

	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cns_agent_events_total",
			Help: "Total number of monitor events routed",
		},
		[]string{"source"},
	)
)
