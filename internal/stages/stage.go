// Package stages implements the seven brewing stage models.
//
// Every stage is an immutable [Model]: a right-hand side over the shared
// [dynamo.State] layout, a physical validity check, and a time span taken
// from its parameters. [Integrate] runs a model through the adaptive solver,
// clamping non-physical values after each accepted step and turning solver
// failures or persistent violations into a [ModelDivergence].
package stages

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/brewsim/internal/dynamo"
	"github.com/san-kum/brewsim/internal/integrators"
)

// Stage names in process order.
const (
	MillingStage      = "milling"
	MashingStage      = "mashing"
	WashingStage      = "washing"
	BoilingStage      = "boiling"
	CoolingStage      = "cooling"
	FermentationStage = "fermentation"
	ConditioningStage = "conditioning"
)

// Order is the fixed process order.
var Order = []string{
	MillingStage,
	MashingStage,
	WashingStage,
	BoilingStage,
	CoolingStage,
	FermentationStage,
	ConditioningStage,
}

// ErrPersistentViolation reports clamping on too many consecutive steps.
var ErrPersistentViolation = errors.New("stages: persistent out-of-bounds state")

// Model is one stage's governing equations and physical constraints.
type Model interface {
	dynamo.System
	Name() string
	Validate(x dynamo.State) (dynamo.State, []Violation)
	Span() dynamo.Span
}

// Algebraic models have no meaningful dynamics and are applied as a single
// transform over their span.
type Algebraic interface {
	Transform(x dynamo.State) dynamo.State
}

// Violation is one clamped component.
type Violation struct {
	Field dynamo.Field
	Value float64
	Bound float64
}

// Clamp records a violation observed at a given stage time.
type Clamp struct {
	Time float64
	Violation
}

// Result is a single stage run.
type Result struct {
	Stage    string
	Samples  []dynamo.Sample
	Final    dynamo.State
	Clamps   []Clamp
	Steps    int
	Duration float64
}

// Clamped reports whether any component was clamped during the run.
func (r *Result) Clamped() bool { return len(r.Clamps) > 0 }

// ModelDivergence is raised when a stage cannot produce a valid trajectory.
type ModelDivergence struct {
	Stage     string
	LastValid dynamo.State
	Time      float64
	Cause     error
}

func (e *ModelDivergence) Error() string {
	return fmt.Sprintf("stage %s diverged at t=%.4fh: %v", e.Stage, e.Time, e.Cause)
}

func (e *ModelDivergence) Unwrap() error { return e.Cause }

// Integrate runs m from x0 over its span. The initial state is validated the
// same way as every accepted step, so clamps at t=0 are recorded too.
func Integrate(m Model, x0 dynamo.State, solver *integrators.Solver) (*Result, error) {
	if len(x0) != dynamo.NumFields {
		return nil, fmt.Errorf("%w: stage %s expects %d fields, got %d",
			dynamo.ErrDimensionMismatch, m.Name(), dynamo.NumFields, len(x0))
	}

	span := m.Span()
	result := &Result{Stage: m.Name(), Duration: span.Length()}
	log := logrus.WithField("stage", m.Name())

	record := func(t float64, vs []Violation) {
		for _, v := range vs {
			result.Clamps = append(result.Clamps, Clamp{Time: t, Violation: v})
			log.Debugf("clamped %s=%.6g to %.6g at t=%.4fh", v.Field, v.Value, v.Bound, t)
		}
	}

	x, vs := m.Validate(x0.Clone())
	record(span.Start, vs)

	if alg, ok := m.(Algebraic); ok {
		out, vs := m.Validate(alg.Transform(x.Clone()))
		if !out.IsValid() {
			return nil, &ModelDivergence{Stage: m.Name(), LastValid: x, Time: span.Start, Cause: dynamo.ErrInvalidState}
		}
		record(span.End, vs)
		result.Samples = []dynamo.Sample{
			{Time: span.Start, State: x},
			{Time: span.End, State: out},
		}
		result.Final = out.Clone()
		result.Steps = 1
		return result, nil
	}

	limit := solver.Config().MaxViolationStreak
	streak := 0
	hook := func(t float64, x dynamo.State) (dynamo.State, error) {
		clamped, vs := m.Validate(x)
		if len(vs) == 0 {
			streak = 0
			return clamped, nil
		}
		record(t, vs)
		streak++
		if streak > limit {
			return nil, fmt.Errorf("%w: %d consecutive steps, last %s=%.6g",
				ErrPersistentViolation, streak, vs[0].Field, vs[0].Value)
		}
		return clamped, nil
	}

	samples, err := solver.Solve(m, x, span, hook)
	if err != nil {
		div := &ModelDivergence{Stage: m.Name(), LastValid: x, Time: span.Start, Cause: err}
		var simErr *dynamo.SimulationError
		if errors.As(err, &simErr) {
			div.LastValid = simErr.State
			div.Time = simErr.Time
			div.Cause = simErr.Wrapped
		}
		log.WithError(div.Cause).Debugf("diverged at t=%.4fh", div.Time)
		return nil, div
	}

	result.Samples = samples
	result.Steps = len(samples) - 1
	result.Final = samples[len(samples)-1].State.Clone()
	log.Debugf("integrated %d steps, %d clamps", result.Steps, len(result.Clamps))
	return result, nil
}

type bound struct{ lo, hi float64 }

// physicalBounds returns the common validity range with a stage-specific
// temperature window.
func physicalBounds(tempLo, tempHi float64) [dynamo.NumFields]bound {
	var b [dynamo.NumFields]bound
	for i := range b {
		b[i] = bound{0, math.Inf(1)}
	}
	b[dynamo.Temperature] = bound{tempLo, tempHi}
	b[dynamo.PH] = bound{3, 8}
	b[dynamo.Enzyme] = bound{0, 1}
	b[dynamo.Crush] = bound{0, 1}
	return b
}

// clampState clamps x in place and reports every changed component.
func clampState(x dynamo.State, b [dynamo.NumFields]bound) (dynamo.State, []Violation) {
	var vs []Violation
	for i := range x {
		if i >= len(b) {
			break
		}
		switch {
		case x[i] < b[i].lo:
			vs = append(vs, Violation{Field: dynamo.Field(i), Value: x[i], Bound: b[i].lo})
			x[i] = b[i].lo
		case x[i] > b[i].hi:
			vs = append(vs, Violation{Field: dynamo.Field(i), Value: x[i], Bound: b[i].hi})
			x[i] = b[i].hi
		}
	}
	return x, vs
}
