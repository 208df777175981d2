package metrics

import (
	"math"

	"github.com/san-kum/brewsim/internal/dynamo"
)

// Stability is the fraction of a stage's samples whose temperature stayed
// within tolerance of the setpoint.
type Stability struct {
	name       string
	stage      string
	setpoint   float64
	tolerance  float64
	violations int
	samples    int
}

func NewStability(stage string, setpoint, tolerance float64) *Stability {
	return &Stability{
		name:      stage + "_stability",
		stage:     stage,
		setpoint:  setpoint,
		tolerance: tolerance,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(stage string, x dynamo.State, t float64) {
	if stage != s.stage {
		return
	}
	s.samples++
	if math.Abs(x[dynamo.Temperature]-s.setpoint) > s.tolerance {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
