// Package optim searches parameter space for Pareto-optimal trade-offs.
//
// All objectives are minimised. A constraint value <= 0 is satisfied. An
// evaluation that errors marks its candidate infeasible with an infinite
// violation instead of aborting the search.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
)

// Evaluation is the outcome of one candidate run.
type Evaluation struct {
	Objectives []float64
	Violations []float64
}

type Evaluator interface {
	Evaluate(ctx context.Context, x []float64) (Evaluation, error)
}

type EvaluatorFunc func(ctx context.Context, x []float64) (Evaluation, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, x []float64) (Evaluation, error) {
	return f(ctx, x)
}

// Compose builds an Evaluator that runs x once and scores the result with
// every objective and constraint.
func Compose[R any](run func(ctx context.Context, x []float64) (R, error), objectives []func(R) float64, constraints []func(R) float64) Evaluator {
	return EvaluatorFunc(func(ctx context.Context, x []float64) (Evaluation, error) {
		r, err := run(ctx, x)
		if err != nil {
			return Evaluation{}, err
		}
		ev := Evaluation{
			Objectives: make([]float64, len(objectives)),
			Violations: make([]float64, len(constraints)),
		}
		for i, f := range objectives {
			ev.Objectives[i] = f(r)
		}
		for i, g := range constraints {
			ev.Violations[i] = g(r)
		}
		return ev, nil
	})
}

// Bound is the closed search interval of one decision variable.
type Bound struct {
	Name  string  `yaml:"name" json:"name" validate:"required"`
	Lower float64 `yaml:"lower" json:"lower"`
	Upper float64 `yaml:"upper" json:"upper" validate:"gtfield=Lower"`
}

func (b Bound) clamp(v float64) float64 {
	return math.Min(math.Max(v, b.Lower), b.Upper)
}

func validateBounds(bounds []Bound) error {
	if len(bounds) == 0 {
		return errors.New("optim: no decision variables")
	}
	for _, b := range bounds {
		if !(b.Upper > b.Lower) || math.IsInf(b.Lower, 0) || math.IsInf(b.Upper, 0) {
			return fmt.Errorf("optim: invalid bound %s=[%g, %g]", b.Name, b.Lower, b.Upper)
		}
	}
	return nil
}

// Candidate is one evaluated point.
type Candidate struct {
	Params     []float64 `json:"params"`
	Objectives []float64 `json:"objectives"`
	Violations []float64 `json:"violations"`
	Feasible   bool      `json:"feasible"`
	Failure    string    `json:"failure,omitempty"`
	Rank       int       `json:"rank"`
	Crowding   float64   `json:"-"`
}

// Violation is the total constraint violation, +Inf for a failed run.
func (c *Candidate) Violation() float64 {
	if c.Failure != "" {
		return math.Inf(1)
	}
	total := 0.0
	for _, v := range c.Violations {
		total += math.Max(v, 0)
	}
	return total
}

func (c *Candidate) clone() Candidate {
	out := *c
	out.Params = append([]float64(nil), c.Params...)
	out.Objectives = append([]float64(nil), c.Objectives...)
	out.Violations = append([]float64(nil), c.Violations...)
	return out
}

// Config controls NSGA-II. A zero MutationRate means 1/len(bounds); zero
// Workers means one per CPU; a nil Reference is derived from the first
// generation.
type Config struct {
	PopulationSize int       `yaml:"population_size" validate:"gte=4"`
	MaxGenerations int       `yaml:"max_generations" validate:"gte=1"`
	CrossoverRate  float64   `yaml:"crossover_rate" validate:"gte=0,lte=1"`
	CrossoverEta   float64   `yaml:"crossover_eta" validate:"gt=0"`
	MutationRate   float64   `yaml:"mutation_rate" validate:"gte=0,lte=1"`
	MutationEta    float64   `yaml:"mutation_eta" validate:"gt=0"`
	Seed           int64     `yaml:"seed"`
	Workers        int       `yaml:"workers" validate:"gte=0"`
	StallWindow    int       `yaml:"stall_window" validate:"gte=0"`
	StallDelta     float64   `yaml:"stall_delta" validate:"gte=0"`
	Reference      []float64 `yaml:"reference,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		PopulationSize: 40,
		MaxGenerations: 50,
		CrossoverRate:  0.9,
		CrossoverEta:   15,
		MutationEta:    20,
		Seed:           1,
		StallWindow:    10,
		StallDelta:     1e-4,
	}
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// GenerationStats summarise the candidates evaluated in one generation.
type GenerationStats struct {
	Generation  int     `json:"generation"`
	Evaluated   int     `json:"evaluated"`
	Feasible    int     `json:"feasible"`
	Infeasible  int     `json:"infeasible"`
	Failed      int     `json:"failed"`
	FrontSize   int     `json:"front_size"`
	Hypervolume float64 `json:"hypervolume"`
}

// Stop reasons.
const (
	ReasonMaxGenerations = "max_generations"
	ReasonConverged      = "hypervolume_converged"
	ReasonCancelled      = "cancelled"
	ReasonStalled        = "search_stalled"
)

type Result struct {
	Front       []Candidate
	Population  []Candidate
	Stats       []GenerationStats
	Generations int
	Reason      string
	Reference   []float64
}

// Hypervolume of the returned front against the result's reference point.
func (r *Result) Hypervolume() float64 {
	if len(r.Reference) == 0 {
		return 0
	}
	return Hypervolume(objectivesOf(r.Front), r.Reference)
}

// ErrSearchStalled matches every *SearchStalledError.
var ErrSearchStalled = errors.New("optim: search stalled")

// SearchStalledError is returned when a whole generation is infeasible.
// After generation 0 the accompanying Result still holds the elite front.
type SearchStalledError struct {
	Generation int
	Evaluated  int
	Failed     int
	LastError  string
}

func (e *SearchStalledError) Error() string {
	msg := fmt.Sprintf("optim: every candidate infeasible in generation %d (%d evaluated, %d failed)",
		e.Generation, e.Evaluated, e.Failed)
	if e.LastError != "" {
		msg += ": last failure: " + e.LastError
	}
	return msg
}

func (e *SearchStalledError) Is(target error) bool { return target == ErrSearchStalled }

func objectivesOf(cs []Candidate) [][]float64 {
	out := make([][]float64, len(cs))
	for i := range cs {
		out[i] = cs[i].Objectives
	}
	return out
}
