// Package pipeline chains the seven stage models into a full brew.
//
// A run validates its inputs, then integrates each stage in process order,
// seeding every stage from the previous one's final state through a
// [Handoff]. Any failure aborts the run with a [StageFailure] naming the
// stage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/brewsim/internal/dynamo"
	"github.com/san-kum/brewsim/internal/integrators"
	"github.com/san-kum/brewsim/internal/metrics"
	"github.com/san-kum/brewsim/internal/stages"
)

// Record is one sample of the concatenated trace. Time is measured from the
// start of milling, StageTime from the start of Stage.
type Record struct {
	Stage     string       `json:"stage"`
	Time      float64      `json:"time"`
	StageTime float64      `json:"stage_time"`
	State     dynamo.State `json:"state"`
}

// Result is a completed pipeline run.
type Result struct {
	Stages  []*stages.Result
	Records []Record
	Final   dynamo.State
	Metrics map[string]float64
}

// Stage returns the result for a stage name, or nil.
func (r *Result) Stage(name string) *stages.Result {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s
		}
	}
	return nil
}

// Series returns the global times and values of one field.
func (r *Result) Series(f dynamo.Field) ([]float64, []float64) {
	times := make([]float64, len(r.Records))
	values := make([]float64, len(r.Records))
	for i, rec := range r.Records {
		times[i] = rec.Time
		values[i] = rec.State[f]
	}
	return times, values
}

// Clamps is the total number of clamped components over every stage.
func (r *Result) Clamps() int {
	n := 0
	for _, s := range r.Stages {
		n += len(s.Clamps)
	}
	return n
}

// Records flattens a stage result into trace records starting at the
// global time offset.
func Records(sr *stages.Result, offset float64) []Record {
	out := make([]Record, len(sr.Samples))
	for i, s := range sr.Samples {
		out[i] = Record{Stage: sr.Stage, Time: offset + s.Time, StageTime: s.Time, State: s.State}
	}
	return out
}

// Observer is told about every completed stage.
type Observer interface {
	OnStage(index int, res *stages.Result)
}

type Option func(*Pipeline)

// WithMetrics attaches metrics evaluated over the finished trace. A
// pipeline with metrics must not run concurrently.
func WithMetrics(ms ...metrics.Metric) Option {
	return func(p *Pipeline) { p.metrics = append(p.metrics, ms...) }
}

func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observers = append(p.observers, o) }
}

// Pipeline runs the fixed stage sequence with one solver.
type Pipeline struct {
	solver    *integrators.Solver
	metrics   []metrics.Metric
	observers []Observer
}

func New(solver *integrators.Solver, opts ...Option) *Pipeline {
	p := &Pipeline{solver: solver}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes milling through conditioning from initial with params.
// Invalid params or initial conditions fail with a
// *dynamo.ConfigurationError before anything is integrated.
func (p *Pipeline) Run(ctx context.Context, initial dynamo.State, params stages.ParameterSet) (*Result, error) {
	start := time.Now()
	res, err := p.run(ctx, initial, params)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	runDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return res, err
}

func (p *Pipeline) run(ctx context.Context, initial dynamo.State, params stages.ParameterSet) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateInitial(initial); err != nil {
		return nil, err
	}
	models, err := stages.Build(params)
	if err != nil {
		return nil, err
	}
	if err := CheckEntry(models[0], initial); err != nil {
		return nil, err
	}

	result := &Result{Stages: make([]*stages.Result, 0, len(models))}
	x := initial.Clone()
	offset := 0.0

	for i, m := range models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if i > 0 {
			next, err := Handoffs[i-1](x, params)
			if err == nil && !next.IsValid() {
				err = fmt.Errorf("%w: non-finite state from %s", ErrIncompatibleHandoff, models[i-1].Name())
			}
			if err != nil {
				stageFailures.WithLabelValues(m.Name()).Inc()
				return nil, &StageFailure{Index: i, Stage: m.Name(), LastValid: x, Time: offset, Cause: err}
			}
			x = next
		}

		sr, err := stages.Integrate(m, x, p.solver)
		if err != nil {
			stageFailures.WithLabelValues(m.Name()).Inc()
			failure := &StageFailure{Index: i, Stage: m.Name(), LastValid: x, Time: offset, Cause: err}
			var div *stages.ModelDivergence
			if errors.As(err, &div) {
				failure.LastValid = div.LastValid
				failure.Time = offset + div.Time
			}
			logrus.WithField("stage", m.Name()).WithError(err).Debug("pipeline aborted")
			return nil, failure
		}

		stageSteps.WithLabelValues(m.Name()).Observe(float64(sr.Steps))
		if sr.Clamped() {
			stageClamps.WithLabelValues(m.Name()).Add(float64(len(sr.Clamps)))
		}

		result.Records = append(result.Records, Records(sr, offset)...)
		offset += sr.Duration
		result.Stages = append(result.Stages, sr)
		x = sr.Final

		for _, o := range p.observers {
			o.OnStage(i, sr)
		}
	}

	result.Final = x.Clone()
	if len(p.metrics) > 0 {
		result.Metrics = metrics.Collect(p.metrics, func(observe func(string, dynamo.State, float64)) {
			for _, rec := range result.Records {
				observe(rec.Stage, rec.State, rec.Time)
			}
		})
	}

	logrus.WithFields(logrus.Fields{
		"hours":   offset,
		"records": len(result.Records),
		"clamps":  result.Clamps(),
	}).Debug("pipeline complete")
	return result, nil
}

// ValidateInitial rejects initial conditions that are malformed, non-finite
// or negative. Temperature may be negative; the window a stage accepts is
// checked by CheckEntry.
func ValidateInitial(x dynamo.State) error {
	if len(x) != dynamo.NumFields {
		return &dynamo.ConfigurationError{
			Scope:  "initial_state",
			Name:   "length",
			Value:  float64(len(x)),
			Reason: fmt.Sprintf("expected %d fields", dynamo.NumFields),
		}
	}
	for i, v := range x {
		f := dynamo.Field(i)
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			return &dynamo.ConfigurationError{Scope: "initial_state", Name: f.String(), Value: v, Reason: "not finite"}
		case v < 0 && f != dynamo.Temperature:
			return &dynamo.ConfigurationError{Scope: "initial_state", Name: f.String(), Value: v, Reason: "negative"}
		}
	}
	return nil
}

// CheckEntry rejects a state that m would clamp on entry, such as a pH or
// temperature outside the stage's physical range.
func CheckEntry(m stages.Model, x dynamo.State) error {
	_, vs := m.Validate(x.Clone())
	if len(vs) == 0 {
		return nil
	}
	v := vs[0]
	return &dynamo.ConfigurationError{
		Scope:  "initial_state",
		Name:   v.Field.String(),
		Value:  v.Value,
		Reason: fmt.Sprintf("outside the %s range (limit %g)", m.Name(), v.Bound),
	}
}

// DefaultInitial is five kilograms of malt at room temperature.
func DefaultInitial() dynamo.State {
	x := dynamo.NewState()
	x[dynamo.Temperature] = 18
	x[dynamo.Mass] = 5
	x[dynamo.PH] = 5.8
	return x
}
