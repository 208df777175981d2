package stages

import (
	"math"

	"github.com/san-kum/brewsim/internal/dynamo"
)

// WashingParams: WashRate in L/h of sparge water, Absorption in L of liquor
// retained per kg grain, Efficiency as the mixing efficiency of the washout,
// WaterTemp in degC, Duration in h.
type WashingParams struct {
	WashRate   float64 `yaml:"wash_rate" validate:"gt=0,lte=200"`
	Absorption float64 `yaml:"absorption" validate:"gt=0,lte=3"`
	Efficiency float64 `yaml:"efficiency" validate:"gt=0,lte=1"`
	WaterTemp  float64 `yaml:"water_temp" validate:"gte=20,lte=95"`
	Duration   float64 `yaml:"duration" validate:"gt=0,lte=6"`
}

func DefaultWashingParams() WashingParams {
	return WashingParams{
		WashRate:   15,
		Absorption: 1.0,
		Efficiency: 0.85,
		WaterTemp:  76,
		Duration:   1.0,
	}
}

func (p *WashingParams) GetParams() map[string]float64 {
	return map[string]float64{
		"wash_rate":  p.WashRate,
		"absorption": p.Absorption,
		"efficiency": p.Efficiency,
		"water_temp": p.WaterTemp,
		"duration":   p.Duration,
	}
}

func (p *WashingParams) SetParam(name string, value float64) error {
	switch name {
	case "wash_rate":
		p.WashRate = value
	case "absorption":
		p.Absorption = value
	case "efficiency":
		p.Efficiency = value
	case "water_temp":
		p.WaterTemp = value
	case "duration":
		p.Duration = value
	default:
		return unknownParam(name)
	}
	return nil
}

// Washing rinses the sugar held in the grain liquor into the collected wort.
// The retained liquor is treated as well mixed, so recovery after a wash
// volume W is 1-exp(-eta*W/Vret).
type Washing struct {
	p      WashingParams
	bounds [dynamo.NumFields]bound
}

func NewWashing(p WashingParams) (*Washing, error) {
	if err := validateStruct(WashingStage, p); err != nil {
		return nil, err
	}
	return &Washing{p: p, bounds: physicalBounds(0, 100)}, nil
}

func (w *Washing) Name() string      { return WashingStage }
func (w *Washing) Span() dynamo.Span { return dynamo.Span{End: w.p.Duration} }

// Retained is the liquor volume held by the given grain mass.
func (w *Washing) Retained(grainMass float64) float64 {
	return w.p.Absorption * grainMass
}

func (w *Washing) Derive(x dynamo.State, t float64) dynamo.State {
	dx := dynamo.NewState()
	q := w.p.WashRate
	volume := x[dynamo.Volume]
	retained := w.Retained(x[dynamo.Mass])

	extract := 0.0
	if retained > 0 {
		extract = w.p.Efficiency * q * math.Max(x[dynamo.GrainSugar], 0) / retained
	}

	dx[dynamo.GrainSugar] = -extract
	dx[dynamo.Volume] = q
	if volume > 0 {
		dx[dynamo.Sugar] = (extract - x[dynamo.Sugar]*q) / volume
		dx[dynamo.Temperature] = q * (w.p.WaterTemp - x[dynamo.Temperature]) / volume
	}
	dx[dynamo.Energy] = q * waterHeatCapacity * math.Max(w.p.WaterTemp-tapWaterTemp, 0)

	return dx
}

func (w *Washing) Validate(x dynamo.State) (dynamo.State, []Violation) {
	return clampState(x, w.bounds)
}
