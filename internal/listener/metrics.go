package listener

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cursorLT = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "tonvault_listener_cursor_lt",
		Help: "Logical time of the last processed vault transaction",
	})

var eventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tonvault_listener_events_total",
		Help: "Deposit events delivered by kind",
	}, []string{"kind"})

var parseFailures = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "tonvault_listener_parse_failures_total",
		Help: "Vault transactions skipped because their body could not be parsed",
	})

var rejectedEvents = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "tonvault_listener_rejected_events_total",
		Help: "Deposit events skipped after a sink rejected them permanently",
	})

var webhookDeliveries = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tonvault_webhook_deliveries_total",
		Help: "Webhook deliveries by outcome",
	}, []string{"outcome"})
