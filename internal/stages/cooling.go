package stages

import (
	"math"

	"github.com/san-kum/brewsim/internal/dynamo"
)

// CoolingParams: CoolantTemp in degC, HeatTransfer in 1/h, ChillerCOP as the
// chiller coefficient of performance, Duration in h.
type CoolingParams struct {
	CoolantTemp  float64 `yaml:"coolant_temp" validate:"gte=-5,lte=30"`
	HeatTransfer float64 `yaml:"heat_transfer" validate:"gt=0,lte=100"`
	ChillerCOP   float64 `yaml:"chiller_cop" validate:"gt=0"`
	Duration     float64 `yaml:"duration" validate:"gt=0,lte=6"`
}

func DefaultCoolingParams() CoolingParams {
	return CoolingParams{
		CoolantTemp:  12,
		HeatTransfer: 3.0,
		ChillerCOP:   chillerCOP,
		Duration:     1.0,
	}
}

func (p *CoolingParams) GetParams() map[string]float64 {
	return map[string]float64{
		"coolant_temp":  p.CoolantTemp,
		"heat_transfer": p.HeatTransfer,
		"chiller_cop":   p.ChillerCOP,
		"duration":      p.Duration,
	}
}

func (p *CoolingParams) SetParam(name string, value float64) error {
	switch name {
	case "coolant_temp":
		p.CoolantTemp = value
	case "heat_transfer":
		p.HeatTransfer = value
	case "chiller_cop":
		p.ChillerCOP = value
	case "duration":
		p.Duration = value
	default:
		return unknownParam(name)
	}
	return nil
}

// Cooling chills the hot wort towards the coolant temperature (Newton's law).
type Cooling struct {
	p      CoolingParams
	bounds [dynamo.NumFields]bound
}

func NewCooling(p CoolingParams) (*Cooling, error) {
	if err := validateStruct(CoolingStage, p); err != nil {
		return nil, err
	}
	return &Cooling{p: p, bounds: physicalBounds(-5, 105)}, nil
}

func (c *Cooling) Name() string      { return CoolingStage }
func (c *Cooling) Span() dynamo.Span { return dynamo.Span{End: c.p.Duration} }

// Expected is the closed-form temperature after t hours.
func (c *Cooling) Expected(t0, t float64) float64 {
	return c.p.CoolantTemp + (t0-c.p.CoolantTemp)*math.Exp(-c.p.HeatTransfer*t)
}

func (c *Cooling) Derive(x dynamo.State, t float64) dynamo.State {
	dx := dynamo.NewState()
	delta := x[dynamo.Temperature] - c.p.CoolantTemp
	dx[dynamo.Temperature] = -c.p.HeatTransfer * delta
	dx[dynamo.Energy] = x[dynamo.Volume] * waterHeatCapacity * c.p.HeatTransfer * math.Max(delta, 0) / c.p.ChillerCOP
	return dx
}

func (c *Cooling) Validate(x dynamo.State) (dynamo.State, []Violation) {
	return clampState(x, c.bounds)
}
