package stages

import (
	"math"

	"github.com/san-kum/brewsim/internal/dynamo"
)

const mashReferenceTemp = 65.0

// MashingParams: WaterRatio in L/kg grain, StarchFraction as mass fraction of
// grain, temperatures in degC, rates in 1/h at 65 degC, activation energies in
// J/mol, SugarYield in g sugar per g starch, HeatLossUA in kJ/(h K), times in h.
type MashingParams struct {
	WaterRatio     float64 `yaml:"water_ratio" validate:"gt=0,lte=10"`
	StarchFraction float64 `yaml:"starch_fraction" validate:"gt=0,lte=1"`
	MashPH         float64 `yaml:"mash_ph" validate:"gte=4,lte=7"`
	RestTemp       float64 `yaml:"rest_temp" validate:"gte=30,lte=90"`
	HeatTau        float64 `yaml:"heat_tau" validate:"gt=0"`
	ConversionRate float64 `yaml:"conversion_rate" validate:"gt=0"`
	ConversionEa   float64 `yaml:"conversion_ea" validate:"gte=0"`
	DenatureRate   float64 `yaml:"denature_rate" validate:"gte=0"`
	DenatureEa     float64 `yaml:"denature_ea" validate:"gte=0"`
	SugarYield     float64 `yaml:"sugar_yield" validate:"gt=0,lte=1.2"`
	HeatLossUA     float64 `yaml:"heat_loss_ua" validate:"gte=0"`
	Duration       float64 `yaml:"duration" validate:"gt=0,lte=6"`
}

func DefaultMashingParams() MashingParams {
	return MashingParams{
		WaterRatio:     3.0,
		StarchFraction: 0.60,
		MashPH:         5.4,
		RestTemp:       66,
		HeatTau:        0.1,
		ConversionRate: 4.0,
		ConversionEa:   60000,
		DenatureRate:   0.3,
		DenatureEa:     200000,
		SugarYield:     1.05,
		HeatLossUA:     20,
		Duration:       1.0,
	}
}

func (p *MashingParams) GetParams() map[string]float64 {
	return map[string]float64{
		"water_ratio":     p.WaterRatio,
		"starch_fraction": p.StarchFraction,
		"mash_ph":         p.MashPH,
		"rest_temp":       p.RestTemp,
		"heat_tau":        p.HeatTau,
		"conversion_rate": p.ConversionRate,
		"conversion_ea":   p.ConversionEa,
		"denature_rate":   p.DenatureRate,
		"denature_ea":     p.DenatureEa,
		"sugar_yield":     p.SugarYield,
		"heat_loss_ua":    p.HeatLossUA,
		"duration":        p.Duration,
	}
}

func (p *MashingParams) SetParam(name string, value float64) error {
	switch name {
	case "water_ratio":
		p.WaterRatio = value
	case "starch_fraction":
		p.StarchFraction = value
	case "mash_ph":
		p.MashPH = value
	case "rest_temp":
		p.RestTemp = value
	case "heat_tau":
		p.HeatTau = value
	case "conversion_rate":
		p.ConversionRate = value
	case "conversion_ea":
		p.ConversionEa = value
	case "denature_rate":
		p.DenatureRate = value
	case "denature_ea":
		p.DenatureEa = value
	case "sugar_yield":
		p.SugarYield = value
	case "heat_loss_ua":
		p.HeatLossUA = value
	case "duration":
		p.Duration = value
	default:
		return unknownParam(name)
	}
	return nil
}

// Mashing converts starch to fermentable sugar with Arrhenius kinetics while
// the amylases denature; a thermostat drives the mash to the rest
// temperature.
type Mashing struct {
	p      MashingParams
	bounds [dynamo.NumFields]bound
}

func NewMashing(p MashingParams) (*Mashing, error) {
	if err := validateStruct(MashingStage, p); err != nil {
		return nil, err
	}
	return &Mashing{p: p, bounds: physicalBounds(0, 100)}, nil
}

func (m *Mashing) Name() string      { return MashingStage }
func (m *Mashing) Span() dynamo.Span { return dynamo.Span{End: m.p.Duration} }

// ConversionRate is the starch hydrolysis rate constant at tempC.
func (m *Mashing) ConversionRate(tempC float64) float64 {
	return arrhenius(m.p.ConversionRate, m.p.ConversionEa, tempC, mashReferenceTemp)
}

func (m *Mashing) Derive(x dynamo.State, t float64) dynamo.State {
	dx := dynamo.NewState()
	temp := x[dynamo.Temperature]
	starch := math.Max(x[dynamo.Starch], 0)
	enzyme := math.Max(x[dynamo.Enzyme], 0)

	k := m.ConversionRate(temp)
	kd := arrhenius(m.p.DenatureRate, m.p.DenatureEa, temp, mashReferenceTemp)

	hydrolysis := k * enzyme * starch
	dx[dynamo.Starch] = -hydrolysis
	dx[dynamo.Sugar] = m.p.SugarYield * hydrolysis
	dx[dynamo.Enzyme] = -kd * enzyme

	dx[dynamo.Temperature] = (m.p.RestTemp - temp) / m.p.HeatTau
	heatCapacity := x[dynamo.Volume]*waterHeatCapacity + x[dynamo.Mass]*grainHeatCapacity
	dx[dynamo.Energy] = heatCapacity*math.Max(dx[dynamo.Temperature], 0) + m.p.HeatLossUA*math.Max(temp-ambientTemp, 0)

	return dx
}

func (m *Mashing) Validate(x dynamo.State) (dynamo.State, []Violation) {
	return clampState(x, m.bounds)
}
