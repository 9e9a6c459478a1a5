package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var activeSessions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "tonvault_monitor_active_sessions",
		Help: "Monitor sessions currently polling",
	})

var ticksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tonvault_monitor_ticks_total",
		Help: "Monitor ticks by tick result",
	}, []string{"result"})

var sessionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tonvault_monitor_sessions_total",
		Help: "Finished monitor sessions by final result",
	}, []string{"result"})
