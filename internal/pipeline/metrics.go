package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "brewsim_pipeline_run_duration_seconds",
		Help:    "Wall time of a full pipeline run",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"result"})

	stageSteps = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "brewsim_stage_steps",
		Help:    "Accepted integrator steps per stage",
		Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
	}, []string{"stage"})

	stageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brewsim_stage_failures_total",
		Help: "Pipeline aborts by failing stage",
	}, []string{"stage"})

	stageClamps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brewsim_stage_clamps_total",
		Help: "Non-physical components clamped by stage",
	}, []string{"stage"})
)
