package stages

import (
	"math"

	"github.com/san-kum/brewsim/internal/dynamo"
)

const maturationReferenceTemp = 20.0

// ConditioningParams: Temp in degC, HeadPressure in atm absolute, KLa and
// ChillRate in 1/h, MaturationRate in 1/h at 20 degC, MaturationEa in J/mol,
// HoldingUA in kJ/(h K), Duration in h.
type ConditioningParams struct {
	Temp           float64 `yaml:"temp" validate:"gte=-2,lte=20"`
	HeadPressure   float64 `yaml:"head_pressure" validate:"gt=0,lte=5"`
	KLa            float64 `yaml:"kla" validate:"gt=0"`
	MaturationRate float64 `yaml:"maturation_rate" validate:"gte=0"`
	MaturationEa   float64 `yaml:"maturation_ea" validate:"gte=0"`
	ChillRate      float64 `yaml:"chill_rate" validate:"gt=0"`
	HoldingUA      float64 `yaml:"holding_ua" validate:"gte=0"`
	Duration       float64 `yaml:"duration" validate:"gt=0,lte=2160"`
}

func DefaultConditioningParams() ConditioningParams {
	return ConditioningParams{
		Temp:           2,
		HeadPressure:   1.8,
		KLa:            0.05,
		MaturationRate: 0.02,
		MaturationEa:   60000,
		ChillRate:      0.5,
		HoldingUA:      2,
		Duration:       336,
	}
}

func (p *ConditioningParams) GetParams() map[string]float64 {
	return map[string]float64{
		"temp":            p.Temp,
		"head_pressure":   p.HeadPressure,
		"kla":             p.KLa,
		"maturation_rate": p.MaturationRate,
		"maturation_ea":   p.MaturationEa,
		"chill_rate":      p.ChillRate,
		"holding_ua":      p.HoldingUA,
		"duration":        p.Duration,
	}
}

func (p *ConditioningParams) SetParam(name string, value float64) error {
	switch name {
	case "temp":
		p.Temp = value
	case "head_pressure":
		p.HeadPressure = value
	case "kla":
		p.KLa = value
	case "maturation_rate":
		p.MaturationRate = value
	case "maturation_ea":
		p.MaturationEa = value
	case "chill_rate":
		p.ChillRate = value
	case "holding_ua":
		p.HoldingUA = value
	case "duration":
		p.Duration = value
	default:
		return unknownParam(name)
	}
	return nil
}

// Conditioning carbonates the beer under head pressure towards Henry's-law
// saturation while the yeast reabsorbs diacetyl.
type Conditioning struct {
	p      ConditioningParams
	bounds [dynamo.NumFields]bound
}

func NewConditioning(p ConditioningParams) (*Conditioning, error) {
	if err := validateStruct(ConditioningStage, p); err != nil {
		return nil, err
	}
	return &Conditioning{p: p, bounds: physicalBounds(-5, 30)}, nil
}

func (c *Conditioning) Name() string      { return ConditioningStage }
func (c *Conditioning) Span() dynamo.Span { return dynamo.Span{End: c.p.Duration} }

// Saturation is the equilibrium CO2 at tempC under the configured head pressure.
func (c *Conditioning) Saturation(tempC float64) float64 {
	return CO2Saturation(tempC, c.p.HeadPressure)
}

func (c *Conditioning) Derive(x dynamo.State, t float64) dynamo.State {
	dx := dynamo.NewState()
	temp := x[dynamo.Temperature]

	dx[dynamo.CO2] = c.p.KLa * (c.Saturation(temp) - x[dynamo.CO2])
	kMat := arrhenius(c.p.MaturationRate, c.p.MaturationEa, temp, maturationReferenceTemp)
	dx[dynamo.Diacetyl] = -kMat * math.Max(x[dynamo.Diacetyl], 0)
	dx[dynamo.Temperature] = -c.p.ChillRate * (temp - c.p.Temp)

	chill := x[dynamo.Volume] * waterHeatCapacity * c.p.ChillRate * math.Max(temp-c.p.Temp, 0)
	hold := c.p.HoldingUA * math.Max(ambientTemp-temp, 0)
	dx[dynamo.Energy] = (chill + hold) / chillerCOP

	return dx
}

func (c *Conditioning) Validate(x dynamo.State) (dynamo.State, []Violation) {
	return clampState(x, c.bounds)
}
