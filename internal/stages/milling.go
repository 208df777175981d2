package stages

import (
	"math"

	"github.com/san-kum/brewsim/internal/dynamo"
)

// MillingParams: Gap and CrushRate in mm, Rittinger in kJ mm/kg, Duration in h.
type MillingParams struct {
	Gap       float64 `yaml:"gap" validate:"gt=0,lte=5"`
	CrushRate float64 `yaml:"crush_rate" validate:"gt=0"`
	Rittinger float64 `yaml:"rittinger" validate:"gte=0"`
	Duration  float64 `yaml:"duration" validate:"gt=0,lte=2"`
}

func DefaultMillingParams() MillingParams {
	return MillingParams{
		Gap:       1.0,
		CrushRate: 1.6,
		Rittinger: 10.0,
		Duration:  0.1,
	}
}

func (p *MillingParams) GetParams() map[string]float64 {
	return map[string]float64{
		"gap":        p.Gap,
		"crush_rate": p.CrushRate,
		"rittinger":  p.Rittinger,
		"duration":   p.Duration,
	}
}

func (p *MillingParams) SetParam(name string, value float64) error {
	switch name {
	case "gap":
		p.Gap = value
	case "crush_rate":
		p.CrushRate = value
	case "rittinger":
		p.Rittinger = value
	case "duration":
		p.Duration = value
	default:
		return unknownParam(name)
	}
	return nil
}

// Milling crushes the grain. Grain mass is conserved; the roller gap sets
// the extractable fraction and the comminution energy (Rittinger's law).
type Milling struct {
	p      MillingParams
	bounds [dynamo.NumFields]bound
}

func NewMilling(p MillingParams) (*Milling, error) {
	if err := validateStruct(MillingStage, p); err != nil {
		return nil, err
	}
	return &Milling{p: p, bounds: physicalBounds(0, 40)}, nil
}

func (m *Milling) Name() string      { return MillingStage }
func (m *Milling) Span() dynamo.Span { return dynamo.Span{End: m.p.Duration} }

func (m *Milling) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.NewState()
}

func (m *Milling) Transform(x dynamo.State) dynamo.State {
	out := x.Clone()
	out[dynamo.Crush] = 1 - math.Exp(-m.p.CrushRate/m.p.Gap)
	out[dynamo.Energy] += m.p.Rittinger * x[dynamo.Mass] / m.p.Gap
	return out
}

func (m *Milling) Validate(x dynamo.State) (dynamo.State, []Violation) {
	return clampState(x, m.bounds)
}
