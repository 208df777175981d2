package stages

import (
	"math"

	"github.com/san-kum/brewsim/internal/dynamo"
)

const (
	fermentReferenceTemp = 20.0
	// K/h rise per g/(L h) of sugar consumed
	fermentHeating = 0.14
)

// FermentationParams: Temp in degC, PitchRate and MaxBiomass in g/L dry yeast,
// MuMax and QMax in 1/h and g/(g h), Ks in g/L, Ea in J/mol, JacketRate in 1/h,
// PHRate in pH per g/L sugar, BufferCapacity in pH/h, DiacetylYield in mg per g
// biomass, DiacetylUptake in L/(g h), Duration in h.
type FermentationParams struct {
	Temp                 float64 `yaml:"temp" validate:"gte=4,lte=35"`
	PitchRate            float64 `yaml:"pitch_rate" validate:"gte=0,lte=50"`
	MuMax                float64 `yaml:"mu_max" validate:"gt=0"`
	MaxBiomass           float64 `yaml:"max_biomass" validate:"gt=0"`
	QMax                 float64 `yaml:"q_max" validate:"gt=0"`
	Ks                   float64 `yaml:"ks" validate:"gt=0"`
	ConversionEfficiency float64 `yaml:"conversion_efficiency" validate:"gt=0,lte=1"`
	Ea                   float64 `yaml:"ea" validate:"gte=0"`
	JacketRate           float64 `yaml:"jacket_rate" validate:"gte=0"`
	PHRate               float64 `yaml:"ph_rate" validate:"gte=0"`
	BufferCapacity       float64 `yaml:"buffer_capacity" validate:"gte=0"`
	PHFloor              float64 `yaml:"ph_floor" validate:"gte=3,lte=6"`
	DiacetylYield        float64 `yaml:"diacetyl_yield" validate:"gte=0"`
	DiacetylUptake       float64 `yaml:"diacetyl_uptake" validate:"gte=0"`
	Duration             float64 `yaml:"duration" validate:"gt=0,lte=720"`
}

func DefaultFermentationParams() FermentationParams {
	return FermentationParams{
		Temp:                 20,
		PitchRate:            5,
		MuMax:                0.15,
		MaxBiomass:           20,
		QMax:                 0.25,
		Ks:                   2,
		ConversionEfficiency: 0.95,
		Ea:                   55000,
		JacketRate:           0.5,
		PHRate:               0.01,
		BufferCapacity:       0.1,
		PHFloor:              4.0,
		DiacetylYield:        0.2,
		DiacetylUptake:       0.005,
		Duration:             168,
	}
}

func (p *FermentationParams) GetParams() map[string]float64 {
	return map[string]float64{
		"temp":                  p.Temp,
		"pitch_rate":            p.PitchRate,
		"mu_max":                p.MuMax,
		"max_biomass":           p.MaxBiomass,
		"q_max":                 p.QMax,
		"ks":                    p.Ks,
		"conversion_efficiency": p.ConversionEfficiency,
		"ea":                    p.Ea,
		"jacket_rate":           p.JacketRate,
		"ph_rate":               p.PHRate,
		"buffer_capacity":       p.BufferCapacity,
		"ph_floor":              p.PHFloor,
		"diacetyl_yield":        p.DiacetylYield,
		"diacetyl_uptake":       p.DiacetylUptake,
		"duration":              p.Duration,
	}
}

func (p *FermentationParams) SetParam(name string, value float64) error {
	switch name {
	case "temp":
		p.Temp = value
	case "pitch_rate":
		p.PitchRate = value
	case "mu_max":
		p.MuMax = value
	case "max_biomass":
		p.MaxBiomass = value
	case "q_max":
		p.QMax = value
	case "ks":
		p.Ks = value
	case "conversion_efficiency":
		p.ConversionEfficiency = value
	case "ea":
		p.Ea = value
	case "jacket_rate":
		p.JacketRate = value
	case "ph_rate":
		p.PHRate = value
	case "buffer_capacity":
		p.BufferCapacity = value
	case "ph_floor":
		p.PHFloor = value
	case "diacetyl_yield":
		p.DiacetylYield = value
	case "diacetyl_uptake":
		p.DiacetylUptake = value
	case "duration":
		p.Duration = value
	default:
		return unknownParam(name)
	}
	return nil
}

// Fermentation is logistic yeast growth with Monod sugar uptake. Consumed
// sugar splits into ethanol and CO2 by Gay-Lussac stoichiometry, scaled by
// the conversion efficiency.
type Fermentation struct {
	p      FermentationParams
	bounds [dynamo.NumFields]bound
}

func NewFermentation(p FermentationParams) (*Fermentation, error) {
	if err := validateStruct(FermentationStage, p); err != nil {
		return nil, err
	}
	return &Fermentation{p: p, bounds: physicalBounds(0, 40)}, nil
}

func (f *Fermentation) Name() string      { return FermentationStage }
func (f *Fermentation) Span() dynamo.Span { return dynamo.Span{End: f.p.Duration} }

// TheoreticalEthanol is the ethanol (g/L) from fully fermenting sugar g/L.
func (f *Fermentation) TheoreticalEthanol(sugar float64) float64 {
	return ethanolPerSugar * f.p.ConversionEfficiency * sugar
}

func (f *Fermentation) Derive(x dynamo.State, t float64) dynamo.State {
	dx := dynamo.NewState()
	temp := x[dynamo.Temperature]
	biomass := math.Max(x[dynamo.Biomass], 0)
	uptake := monod(x[dynamo.Sugar], f.p.Ks)
	activity := arrhenius(1, f.p.Ea, temp, fermentReferenceTemp)

	mu := f.p.MuMax * activity * biomass * (1 - biomass/f.p.MaxBiomass) * uptake
	rs := f.p.QMax * activity * biomass * uptake

	dx[dynamo.Biomass] = mu
	dx[dynamo.Sugar] = -rs
	dx[dynamo.Ethanol] = ethanolPerSugar * f.p.ConversionEfficiency * rs
	dx[dynamo.CO2] = co2PerSugar * f.p.ConversionEfficiency * rs

	dx[dynamo.Temperature] = fermentHeating*rs - f.p.JacketRate*(temp-f.p.Temp)
	if x[dynamo.PH] > f.p.PHFloor {
		dx[dynamo.PH] = math.Max(-f.p.PHRate*rs, -f.p.BufferCapacity)
	}

	diacetyl := math.Max(x[dynamo.Diacetyl], 0)
	dx[dynamo.Diacetyl] = f.p.DiacetylYield*math.Max(mu, 0) - f.p.DiacetylUptake*activity*biomass*diacetyl

	dx[dynamo.Energy] = x[dynamo.Volume] * waterHeatCapacity * f.p.JacketRate * math.Max(temp-f.p.Temp, 0) / chillerCOP

	return dx
}

func (f *Fermentation) Validate(x dynamo.State) (dynamo.State, []Violation) {
	return clampState(x, f.bounds)
}
