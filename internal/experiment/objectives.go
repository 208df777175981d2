package experiment

import (
	"github.com/san-kum/brewsim/internal/dynamo"
	"github.com/san-kum/brewsim/internal/metrics"
	"github.com/san-kum/brewsim/internal/pipeline"
	"github.com/san-kum/brewsim/internal/stages"
)

// Run is one decoded candidate and the brew it produced.
type Run struct {
	Params stages.ParameterSet
	Result *pipeline.Result
}

// Objective is a minimised scalar over a completed run.
type Objective struct {
	Name string
	Fn   func(*Run) float64
}

// Constraint is satisfied when Fn returns a value <= 0.
type Constraint struct {
	Name string
	Fn   func(*Run) float64
}

// Limits are the process limits behind the default constraints.
type Limits struct {
	MinVolume        float64 `yaml:"min_volume" json:"min_volume" validate:"gte=0"`
	MaxResidualSugar float64 `yaml:"max_residual_sugar" json:"max_residual_sugar" validate:"gt=0"`
}

func DefaultLimits() Limits {
	return Limits{MinVolume: 18, MaxResidualSugar: 20}
}

// NegYield rewards ethanol mass in the finished beer.
func NegYield() Objective {
	return Objective{Name: "neg_yield", Fn: func(r *Run) float64 {
		return -metrics.EthanolMass(r.Result.Final)
	}}
}

// Energy is the heat and chiller work spent over the whole brew.
func Energy() Objective {
	return Objective{Name: "energy", Fn: func(r *Run) float64 {
		if len(r.Result.Records) == 0 {
			return 0
		}
		first := r.Result.Records[0].State[dynamo.Energy]
		return r.Result.Final[dynamo.Energy] - first
	}}
}

func OffFlavor(targets metrics.Targets) Objective {
	return Objective{Name: "off_flavor", Fn: func(r *Run) float64 {
		return metrics.OffFlavorScore(r.Result.Final, targets)
	}}
}

// BoilHold requires the wort to hold sterilisation temperature for the
// boiling stage's minimum hold.
func BoilHold() Constraint {
	return Constraint{Name: "boil_hold", Fn: func(r *Run) float64 {
		boil := r.Result.Stage(stages.BoilingStage)
		if boil == nil {
			return r.Params.Boiling.MinHold
		}
		return r.Params.Boiling.MinHold - boil.Final[dynamo.Hold]
	}}
}

func MinVolume(limits Limits) Constraint {
	return Constraint{Name: "min_volume", Fn: func(r *Run) float64 {
		return limits.MinVolume - r.Result.Final[dynamo.Volume]
	}}
}

func ResidualSugar(limits Limits) Constraint {
	return Constraint{Name: "residual_sugar", Fn: func(r *Run) float64 {
		return r.Result.Final[dynamo.Sugar] - limits.MaxResidualSugar
	}}
}

// DefaultObjectives trades yield against energy and flavor.
func DefaultObjectives(targets metrics.Targets) []Objective {
	return []Objective{NegYield(), Energy(), OffFlavor(targets)}
}

func DefaultConstraints(limits Limits) []Constraint {
	return []Constraint{BoilHold(), MinVolume(limits), ResidualSugar(limits)}
}
