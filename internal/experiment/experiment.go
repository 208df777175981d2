// Package experiment wires the brewing pipeline to the optimizer: it decodes
// parameter vectors, runs full brews and scores them.
package experiment

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/brewsim/internal/dynamo"
	"github.com/san-kum/brewsim/internal/metrics"
	"github.com/san-kum/brewsim/internal/optim"
	"github.com/san-kum/brewsim/internal/pipeline"
	"github.com/san-kum/brewsim/internal/stages"
)

type Config struct {
	Integrator  string
	Solver      dynamo.Config
	Initial     dynamo.State
	Params      stages.ParameterSet
	Targets     metrics.Targets
	Limits      Limits
	Optimizer   optim.Config
	Search      []optim.Bound
	Objectives  []string
	Constraints []string
}

func DefaultConfig() Config {
	return Config{
		Integrator: "rk45",
		Solver:     dynamo.DefaultConfig(),
		Initial:    pipeline.DefaultInitial(),
		Params:     stages.DefaultParameterSet(),
		Targets:    metrics.DefaultTargets(),
		Limits:     DefaultLimits(),
		Optimizer:  optim.DefaultConfig(),
		Search:     DefaultSearchSpace(),
	}
}

// DefaultSearchSpace covers the levers a brewer actually turns. Bound names
// are "stage.coefficient" keys.
func DefaultSearchSpace() []optim.Bound {
	return []optim.Bound{
		{Name: "milling.gap", Lower: 0.6, Upper: 1.4},
		{Name: "mashing.rest_temp", Lower: 60, Upper: 72},
		{Name: "mashing.duration", Lower: 0.5, Upper: 2},
		{Name: "boiling.hop_dose", Lower: 20, Upper: 120},
		{Name: "boiling.duration", Lower: 0.5, Upper: 1.5},
		{Name: "fermentation.temp", Lower: 12, Upper: 24},
		{Name: "fermentation.pitch_rate", Lower: 1, Upper: 15},
	}
}

type Experiment struct {
	cfg      Config
	registry *Registry
	progress func(optim.GenerationStats)
}

func New(cfg Config) *Experiment {
	return &Experiment{cfg: cfg, registry: NewRegistry()}
}

func (e *Experiment) Config() Config { return e.cfg }

func (e *Experiment) Registry() *Registry { return e.registry }

// OnGeneration forwards optimizer progress to fn.
func (e *Experiment) OnGeneration(fn func(optim.GenerationStats)) {
	e.progress = fn
}

// Run brews once with the configured parameters and reports the standard
// metrics.
func (e *Experiment) Run(ctx context.Context, opts ...pipeline.Option) (*pipeline.Result, error) {
	solver, err := e.registry.Solver(e.cfg.Integrator, e.cfg.Solver)
	if err != nil {
		return nil, err
	}
	opts = append([]pipeline.Option{
		pipeline.WithMetrics(e.registry.DefaultMetrics(e.cfg.Targets, e.cfg.Params)...),
	}, opts...)
	return pipeline.New(solver, opts...).Run(ctx, e.cfg.Initial, e.cfg.Params)
}

// RunStage integrates a single stage from x0. A nil x0 starts the stage from
// the state it receives in a full brew with the configured parameters.
func (e *Experiment) RunStage(ctx context.Context, name string, x0 dynamo.State) (*stages.Result, error) {
	model, err := e.registry.Stage(name, e.cfg.Params)
	if err != nil {
		return nil, err
	}
	if err := e.cfg.Params.Validate(); err != nil {
		return nil, err
	}
	solver, err := e.registry.Solver(e.cfg.Integrator, e.cfg.Solver)
	if err != nil {
		return nil, err
	}
	if x0 == nil {
		full, err := pipeline.New(solver).Run(ctx, e.cfg.Initial, e.cfg.Params)
		if err != nil {
			return nil, fmt.Errorf("deriving %s input: %w", name, err)
		}
		x0 = full.Stage(name).Samples[0].State
	} else if err := pipeline.ValidateInitial(x0); err != nil {
		return nil, err
	} else if err := pipeline.CheckEntry(model, x0); err != nil {
		return nil, err
	}
	return stages.Integrate(model, x0, solver)
}

// Decode overlays a decision vector onto the configured parameters.
func (e *Experiment) Decode(x []float64) (stages.ParameterSet, error) {
	if len(x) != len(e.cfg.Search) {
		return stages.ParameterSet{}, fmt.Errorf("decode: got %d values for %d variables", len(x), len(e.cfg.Search))
	}
	params := e.cfg.Params
	for i, b := range e.cfg.Search {
		if err := params.SetKey(b.Name, x[i]); err != nil {
			return stages.ParameterSet{}, err
		}
	}
	return params, nil
}

// Brew decodes x and runs the pipeline on a solver of its own, so
// concurrent calls share nothing.
func (e *Experiment) Brew(ctx context.Context, x []float64) (*Run, error) {
	params, err := e.Decode(x)
	if err != nil {
		return nil, err
	}
	solver, err := e.registry.Solver(e.cfg.Integrator, e.cfg.Solver)
	if err != nil {
		return nil, err
	}
	res, err := pipeline.New(solver).Run(ctx, e.cfg.Initial, params)
	if err != nil {
		return nil, err
	}
	return &Run{Params: params, Result: res}, nil
}

// Evaluator scores decision vectors with the configured objectives and
// constraints.
func (e *Experiment) Evaluator() (optim.Evaluator, error) {
	objs, err := e.registry.Objectives(e.cfg.Objectives, e.cfg.Targets, e.cfg.Limits)
	if err != nil {
		return nil, err
	}
	cons, err := e.registry.Constraints(e.cfg.Constraints, e.cfg.Targets, e.cfg.Limits)
	if err != nil {
		return nil, err
	}
	objFns := make([]func(*Run) float64, len(objs))
	for i, o := range objs {
		objFns[i] = o.Fn
	}
	conFns := make([]func(*Run) float64, len(cons))
	for i, c := range cons {
		conFns[i] = c.Fn
	}
	return optim.Compose(e.Brew, objFns, conFns), nil
}

// ObjectiveNames lists the resolved objectives in evaluation order.
func (e *Experiment) ObjectiveNames() []string {
	objs, err := e.registry.Objectives(e.cfg.Objectives, e.cfg.Targets, e.cfg.Limits)
	if err != nil {
		return nil
	}
	names := make([]string, len(objs))
	for i, o := range objs {
		names[i] = o.Name
	}
	return names
}

// checkSearch rejects search variables that do not name a coefficient.
func (e *Experiment) checkSearch(bounds []optim.Bound) error {
	probe := e.cfg.Params
	for _, b := range bounds {
		if err := probe.SetKey(b.Name, b.Lower); err != nil {
			return err
		}
	}
	return nil
}

// Optimize runs NSGA-II over the configured search space.
func (e *Experiment) Optimize(ctx context.Context) (*optim.Result, error) {
	if err := e.checkSearch(e.cfg.Search); err != nil {
		return nil, err
	}
	eval, err := e.Evaluator()
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"variables":   len(e.cfg.Search),
		"population":  e.cfg.Optimizer.PopulationSize,
		"generations": e.cfg.Optimizer.MaxGenerations,
	}).Info("starting optimization")
	return optim.NewNSGA2(e.cfg.Optimizer).OnGeneration(e.progress).Optimize(ctx, eval, e.cfg.Search)
}

// Sweep grid-searches one coefficient with every other parameter fixed and
// returns the point best on the first objective along with every point.
func (e *Experiment) Sweep(ctx context.Context, bound optim.Bound, points int) (*optim.Candidate, []optim.Candidate, error) {
	if err := e.checkSearch([]optim.Bound{bound}); err != nil {
		return nil, nil, err
	}
	single := *e
	single.cfg.Search = []optim.Bound{bound}
	eval, err := single.Evaluator()
	if err != nil {
		return nil, nil, err
	}
	return optim.NewGridSearch(single.cfg.Search, points, 0).Search(ctx, eval)
}
