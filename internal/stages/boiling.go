package stages

import (
	"math"

	"github.com/san-kum/brewsim/internal/dynamo"
)

const isoReferenceTemp = 100.0

// BoilingParams: Power in kW, temperatures in degC, HopDose in mg/L of alpha
// acid, rates in 1/h at 100 degC, activation energies in J/mol, HeatLossUA in
// kJ/(h K), MinHold and Duration in h.
type BoilingParams struct {
	Power             float64 `yaml:"power" validate:"gt=0,lte=50"`
	BoilTemp          float64 `yaml:"boil_temp" validate:"gte=90,lte=102"`
	SterilizationTemp float64 `yaml:"sterilization_temp" validate:"gte=80,lte=102"`
	HopDose           float64 `yaml:"hop_dose" validate:"gte=0,lte=500"`
	IsoRate           float64 `yaml:"iso_rate" validate:"gt=0"`
	IsoEa             float64 `yaml:"iso_ea" validate:"gte=0"`
	DegradeRate       float64 `yaml:"degrade_rate" validate:"gte=0"`
	DegradeEa         float64 `yaml:"degrade_ea" validate:"gte=0"`
	HeatLossUA        float64 `yaml:"heat_loss_ua" validate:"gte=0"`
	MinHold           float64 `yaml:"min_hold" validate:"gte=0"`
	Duration          float64 `yaml:"duration" validate:"gt=0,lte=4"`
}

func DefaultBoilingParams() BoilingParams {
	return BoilingParams{
		Power:             3.0,
		BoilTemp:          100,
		SterilizationTemp: 98,
		HopDose:           60,
		IsoRate:           0.6,
		IsoEa:             108000,
		DegradeRate:       0.1,
		DegradeEa:         94000,
		HeatLossUA:        10,
		MinHold:           0.25,
		Duration:          1.0,
	}
}

func (p *BoilingParams) GetParams() map[string]float64 {
	return map[string]float64{
		"power":              p.Power,
		"boil_temp":          p.BoilTemp,
		"sterilization_temp": p.SterilizationTemp,
		"hop_dose":           p.HopDose,
		"iso_rate":           p.IsoRate,
		"iso_ea":             p.IsoEa,
		"degrade_rate":       p.DegradeRate,
		"degrade_ea":         p.DegradeEa,
		"heat_loss_ua":       p.HeatLossUA,
		"min_hold":           p.MinHold,
		"duration":           p.Duration,
	}
}

func (p *BoilingParams) SetParam(name string, value float64) error {
	switch name {
	case "power":
		p.Power = value
	case "boil_temp":
		p.BoilTemp = value
	case "sterilization_temp":
		p.SterilizationTemp = value
	case "hop_dose":
		p.HopDose = value
	case "iso_rate":
		p.IsoRate = value
	case "iso_ea":
		p.IsoEa = value
	case "degrade_rate":
		p.DegradeRate = value
	case "degrade_ea":
		p.DegradeEa = value
	case "heat_loss_ua":
		p.HeatLossUA = value
	case "min_hold":
		p.MinHold = value
	case "duration":
		p.Duration = value
	default:
		return unknownParam(name)
	}
	return nil
}

// Boiling heats the wort to the boil, then spends the net heater power on
// evaporation. Evaporation removes water only, so every solute is
// concentrated. Alpha acids isomerise (Malowicki first-order kinetics) and
// the time spent above the sterilisation temperature is accumulated in Hold.
type Boiling struct {
	p      BoilingParams
	bounds [dynamo.NumFields]bound
}

func NewBoiling(p BoilingParams) (*Boiling, error) {
	if err := validateStruct(BoilingStage, p); err != nil {
		return nil, err
	}
	return &Boiling{p: p, bounds: physicalBounds(0, 105)}, nil
}

func (b *Boiling) Name() string      { return BoilingStage }
func (b *Boiling) Span() dynamo.Span { return dynamo.Span{End: b.p.Duration} }

// MinHold is the sterilisation hold the boil must reach.
func (b *Boiling) MinHold() float64 { return b.p.MinHold }

func (b *Boiling) Derive(x dynamo.State, t float64) dynamo.State {
	dx := dynamo.NewState()
	temp := x[dynamo.Temperature]
	volume := x[dynamo.Volume]
	if volume <= 0 {
		return dx
	}

	boiling := sigmoid((temp - b.p.BoilTemp) / switchWidth)
	power := b.p.Power*3600 - b.p.HeatLossUA*(temp-ambientTemp)
	evap := math.Max(power, 0) * boiling / latentHeat

	dx[dynamo.Temperature] = power * (1 - boiling) / (volume * waterHeatCapacity)
	dx[dynamo.Volume] = -evap
	dx[dynamo.Evaporated] = evap

	concentrate := evap / volume
	for _, f := range []dynamo.Field{dynamo.Sugar, dynamo.Ethanol, dynamo.Biomass, dynamo.Diacetyl, dynamo.CO2} {
		dx[f] = x[f] * concentrate
	}

	alpha := math.Max(x[dynamo.AlphaAcid], 0)
	iso := math.Max(x[dynamo.IsoAlpha], 0)
	k1 := arrhenius(b.p.IsoRate, b.p.IsoEa, temp, isoReferenceTemp)
	k2 := arrhenius(b.p.DegradeRate, b.p.DegradeEa, temp, isoReferenceTemp)
	dx[dynamo.AlphaAcid] = -k1*alpha + alpha*concentrate
	dx[dynamo.IsoAlpha] = k1*alpha - k2*iso + iso*concentrate

	dx[dynamo.Hold] = sigmoid((temp - b.p.SterilizationTemp) / switchWidth)
	dx[dynamo.Energy] = b.p.Power * 3600

	return dx
}

func (b *Boiling) Validate(x dynamo.State) (dynamo.State, []Violation) {
	return clampState(x, b.bounds)
}
