package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "planweave",
		Name:      "runs_total",
		Help:      "Completed agent runs by outcome.",
	}, []string{"outcome"})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "planweave",
		Name:      "machine_transitions_total",
		Help:      "State machine transitions by state.",
	}, []string{"state"})

	stepsExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "planweave",
		Name:      "plan_steps_executed_total",
		Help:      "Plan steps executed by the tool-calling agent.",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "planweave",
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of agent runs.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})
)
