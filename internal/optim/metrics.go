package optim

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brewsim_optim_evaluations_total",
		Help: "Candidate evaluations by outcome",
	}, []string{"outcome"})

	generations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brewsim_optim_generations_total",
		Help: "Completed optimizer generations",
	})

	hypervolume = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "brewsim_optim_hypervolume",
		Help: "Hypervolume of the current feasible front",
	})
)
