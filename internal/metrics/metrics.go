// Package metrics reduces a brewing trace to scalar quality figures.
//
// A Metric observes every recorded state of a pipeline run in order and
// reports one value at the end. Metrics are stateful; use a fresh set (or
// Reset) per run.
package metrics

import "github.com/san-kum/brewsim/internal/dynamo"

type Metric interface {
	Name() string
	Observe(stage string, x dynamo.State, t float64)
	Value() float64
	Reset()
}

// Targets are the style targets the flavor metrics score against.
type Targets struct {
	IBU               float64 `yaml:"ibu" json:"ibu" validate:"gt=0"`
	CO2               float64 `yaml:"co2" json:"co2" validate:"gt=0"`
	DiacetylThreshold float64 `yaml:"diacetyl_threshold" json:"diacetyl_threshold" validate:"gt=0"`
}

func DefaultTargets() Targets {
	return Targets{IBU: 30, CO2: 5, DiacetylThreshold: 0.1}
}

// Standard returns the metric set reported for every pipeline run.
// fermentTemp is the fermentation setpoint the stability metric checks.
func Standard(targets Targets, fermentTemp float64) []Metric {
	return []Metric{
		NewYield(),
		NewEnergy(),
		NewAttenuation(),
		NewOffFlavor(targets),
		NewPeak("peak_diacetyl", dynamo.Diacetyl),
		NewPeak("peak_temperature", dynamo.Temperature),
		NewStability("fermentation", fermentTemp, 2),
	}
}

// Collect resets ms, feeds them the observations produced by walk and
// returns the values by name.
func Collect(ms []Metric, walk func(observe func(stage string, x dynamo.State, t float64))) map[string]float64 {
	for _, m := range ms {
		m.Reset()
	}
	walk(func(stage string, x dynamo.State, t float64) {
		for _, m := range ms {
			m.Observe(stage, x, t)
		}
	})
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
