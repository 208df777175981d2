package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/brewsim/internal/dynamo"
	"github.com/san-kum/brewsim/internal/integrators"
	"github.com/san-kum/brewsim/internal/metrics"
	"github.com/san-kum/brewsim/internal/stages"
)

// Registry resolves stages, integrators, objectives and constraints by name.
type Registry struct {
	integrators map[string]func(dynamo.Config) (*integrators.Solver, error)
	objectives  map[string]func(metrics.Targets, Limits) Objective
	constraints map[string]func(metrics.Targets, Limits) Constraint
}

func NewRegistry() *Registry {
	r := &Registry{
		integrators: make(map[string]func(dynamo.Config) (*integrators.Solver, error)),
		objectives:  make(map[string]func(metrics.Targets, Limits) Objective),
		constraints: make(map[string]func(metrics.Targets, Limits) Constraint),
	}

	for _, name := range integrators.Methods {
		name := name
		r.integrators[name] = func(cfg dynamo.Config) (*integrators.Solver, error) {
			return integrators.New(name, cfg)
		}
	}

	r.objectives["neg_yield"] = func(metrics.Targets, Limits) Objective { return NegYield() }
	r.objectives["energy"] = func(metrics.Targets, Limits) Objective { return Energy() }
	r.objectives["off_flavor"] = func(t metrics.Targets, _ Limits) Objective { return OffFlavor(t) }

	r.constraints["boil_hold"] = func(metrics.Targets, Limits) Constraint { return BoilHold() }
	r.constraints["min_volume"] = func(_ metrics.Targets, l Limits) Constraint { return MinVolume(l) }
	r.constraints["residual_sugar"] = func(_ metrics.Targets, l Limits) Constraint { return ResidualSugar(l) }

	return r
}

// Stage builds one stage model from params.
func (r *Registry) Stage(name string, params stages.ParameterSet) (stages.Model, error) {
	return stages.NewModel(name, params)
}

func (r *Registry) Solver(name string, cfg dynamo.Config) (*integrators.Solver, error) {
	if name == "" {
		name = "rk45"
	}
	fn, ok := r.integrators[name]
	if !ok {
		return nil, &dynamo.ConfigurationError{Scope: "integrator", Name: name, Reason: "unknown integrator"}
	}
	return fn(cfg)
}

// Objectives resolves names in order. An empty list yields the defaults.
func (r *Registry) Objectives(names []string, targets metrics.Targets, limits Limits) ([]Objective, error) {
	if len(names) == 0 {
		return DefaultObjectives(targets), nil
	}
	out := make([]Objective, 0, len(names))
	for _, name := range names {
		fn, ok := r.objectives[name]
		if !ok {
			return nil, fmt.Errorf("unknown objective: %s", name)
		}
		out = append(out, fn(targets, limits))
	}
	return out, nil
}

// Constraints resolves names in order. A nil list yields the defaults; an
// empty non-nil list disables constraints.
func (r *Registry) Constraints(names []string, targets metrics.Targets, limits Limits) ([]Constraint, error) {
	if names == nil {
		return DefaultConstraints(limits), nil
	}
	out := make([]Constraint, 0, len(names))
	for _, name := range names {
		fn, ok := r.constraints[name]
		if !ok {
			return nil, fmt.Errorf("unknown constraint: %s", name)
		}
		out = append(out, fn(targets, limits))
	}
	return out, nil
}

func (r *Registry) ListStages() []string {
	return append([]string(nil), stages.Order...)
}

func (r *Registry) ListIntegrators() []string { return sortedKeys(r.integrators) }
func (r *Registry) ListObjectives() []string  { return sortedKeys(r.objectives) }
func (r *Registry) ListConstraints() []string { return sortedKeys(r.constraints) }

// DefaultMetrics is the metric set reported for a pipeline run.
func (r *Registry) DefaultMetrics(targets metrics.Targets, params stages.ParameterSet) []metrics.Metric {
	return metrics.Standard(targets, params.Fermentation.Temp)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
