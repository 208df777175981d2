package dynamo

import (
	"fmt"
	"math"
	"strings"
)

// Field indexes a physical quantity in a State.
type Field int

const (
	Temperature Field = iota // degC
	Sugar                    // g/L fermentable extract
	Ethanol                  // g/L
	CO2                      // g/L
	PH
	Volume     // L of liquid
	Mass       // kg of grain
	Starch     // g/L
	Enzyme     // relative amylase activity, 0..1
	Crush      // milled fraction, 0..1
	GrainSugar // g held in the grain liquor
	Biomass    // g/L yeast
	AlphaAcid  // mg/L
	IsoAlpha   // mg/L, roughly IBU
	Diacetyl   // mg/L
	Hold       // h above sterilisation temperature
	Evaporated // L of cumulative boil-off
	Energy     // kJ of cumulative process energy

	NumFields int = iota
)

var fieldNames = [...]string{
	Temperature: "temperature",
	Sugar:       "sugar",
	Ethanol:     "ethanol",
	CO2:         "co2",
	PH:          "ph",
	Volume:      "volume",
	Mass:        "grain_mass",
	Starch:      "starch",
	Enzyme:      "enzyme",
	Crush:       "crush",
	GrainSugar:  "grain_sugar",
	Biomass:     "biomass",
	AlphaAcid:   "alpha_acid",
	IsoAlpha:    "iso_alpha",
	Diacetyl:    "diacetyl",
	Hold:        "hold",
	Evaporated:  "evaporated",
	Energy:      "energy",
}

func (f Field) String() string {
	if f < 0 || int(f) >= NumFields {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldNames[f]
}

// Fields returns every field in state order.
func Fields() []Field {
	out := make([]Field, NumFields)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

// FieldNames returns the canonical field names in state order.
func FieldNames() []string {
	out := make([]string, NumFields)
	copy(out, fieldNames[:])
	return out
}

// ParseField resolves a canonical field name.
func ParseField(name string) (Field, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range fieldNames {
		if n == name {
			return Field(i), true
		}
	}
	return 0, false
}

// State is the process state vector. Its length is always NumFields.
type State []float64

// NewState returns a zeroed state.
func NewState() State {
	return make(State, NumFields)
}

// ParseState builds a State from a named mapping. Unnamed fields are zero.
func ParseState(values map[string]float64) (State, error) {
	x := NewState()
	for name, v := range values {
		f, ok := ParseField(name)
		if !ok {
			return nil, &ConfigurationError{Scope: "initial_state", Name: name, Value: v, Reason: "unknown field"}
		}
		x[f] = v
	}
	return x, nil
}

// Map returns the state as a named mapping.
func (s State) Map() map[string]float64 {
	out := make(map[string]float64, len(s))
	for i, v := range s {
		out[Field(i).String()] = v
	}
	return out
}

func (s State) Get(f Field) float64 { return s[f] }

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Add, Sub and Scale return new states; components beyond the shorter
// operand are copied from s.
func (s State) Add(other State) State {
	return s.zip(other, func(a, b float64) float64 { return a + b })
}

func (s State) Sub(other State) State {
	return s.zip(other, func(a, b float64) float64 { return a - b })
}

func (s State) Scale(factor float64) State {
	return s.zip(s, func(a, _ float64) float64 { return a * factor })
}

func (s State) zip(other State, op func(a, b float64) float64) State {
	out := s.Clone()
	for i, n := 0, min(len(s), len(other)); i < n; i++ {
		out[i] = op(s[i], other[i])
	}
	return out
}

func (s State) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for i, v := range s {
		if v == 0 {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&b, "%s=%.4g", Field(i), v)
	}
	b.WriteByte('}')
	return b.String()
}

// System is an autonomous-in-control ODE right-hand side.
type System interface {
	Derive(x State, t float64) State
}

// SystemFunc adapts a plain function to System.
type SystemFunc func(x State, t float64) State

func (f SystemFunc) Derive(x State, t float64) State { return f(x, t) }

// Span is a time interval in hours.
type Span struct {
	Start float64
	End   float64
}

func (s Span) Length() float64 { return s.End - s.Start }

// Sample is one point of a trace.
type Sample struct {
	Time  float64
	State State
}

// Config holds the adaptive solver settings.
type Config struct {
	Tolerance          float64 `yaml:"tolerance" validate:"gt=0"`
	AbsTolerance       float64 `yaml:"abs_tolerance" validate:"gt=0"`
	InitialDt          float64 `yaml:"initial_dt" validate:"gte=0"`
	MinDt              float64 `yaml:"min_dt" validate:"gt=0"`
	MaxDt              float64 `yaml:"max_dt" validate:"gte=0"`
	MaxRetries         int     `yaml:"max_retries" validate:"gt=0"`
	MaxSteps           int     `yaml:"max_steps" validate:"gt=0"`
	MaxViolationStreak int     `yaml:"max_violation_streak" validate:"gt=0"`
	Safety             float64 `yaml:"safety" validate:"gt=0,lt=1"`
	MaxScale           float64 `yaml:"max_scale" validate:"gt=1"`
}

func DefaultConfig() Config {
	return Config{
		Tolerance:          1e-6,
		AbsTolerance:       1e-9,
		MinDt:              1e-12,
		MaxRetries:         40,
		MaxSteps:           200000,
		MaxViolationStreak: 5,
		Safety:             0.9,
		MaxScale:           5.0,
	}
}
