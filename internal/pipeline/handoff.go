package pipeline

import (
	"fmt"
	"math"

	"github.com/san-kum/brewsim/internal/dynamo"
	"github.com/san-kum/brewsim/internal/stages"
)

// Handoff maps the final state of one stage onto the initial state of the
// next. Fields it does not mention are carried over unchanged.
type Handoff func(from dynamo.State, ps stages.ParameterSet) (dynamo.State, error)

// Handoffs[i] connects stages.Order[i] to stages.Order[i+1].
var Handoffs = [...]Handoff{
	millToMash,
	mashToWash,
	washToBoil,
	boilToCool,
	coolToFerment,
	fermentToCondition,
}

func millToMash(from dynamo.State, ps stages.ParameterSet) (dynamo.State, error) {
	x := from.Clone()
	mass := from[dynamo.Mass]
	if mass <= 0 {
		return nil, fmt.Errorf("%w: no grain to mash", ErrIncompatibleHandoff)
	}
	p := ps.Mashing

	x[dynamo.Volume] = mass * p.WaterRatio
	// kg -> g of extractable starch per litre of strike water
	x[dynamo.Starch] = mass * 1000 * p.StarchFraction * from[dynamo.Crush] / x[dynamo.Volume]
	x[dynamo.Enzyme] = 1
	x[dynamo.PH] = p.MashPH
	x[dynamo.Crush] = 0
	return x, nil
}

func mashToWash(from dynamo.State, ps stages.ParameterSet) (dynamo.State, error) {
	x := from.Clone()
	retained := ps.Washing.Absorption * from[dynamo.Mass]
	if from[dynamo.Volume]-retained <= 0 {
		return nil, fmt.Errorf("%w: grain retains %.2fL of %.2fL mash liquor",
			ErrIncompatibleHandoff, retained, from[dynamo.Volume])
	}

	x[dynamo.GrainSugar] = from[dynamo.Sugar] * retained
	x[dynamo.Volume] = from[dynamo.Volume] - retained
	x[dynamo.Starch] = 0
	x[dynamo.Enzyme] = 0
	return x, nil
}

func washToBoil(from dynamo.State, ps stages.ParameterSet) (dynamo.State, error) {
	x := from.Clone()
	x[dynamo.AlphaAcid] = ps.Boiling.HopDose
	x[dynamo.IsoAlpha] = 0
	x[dynamo.Hold] = 0
	x[dynamo.Evaporated] = 0
	x[dynamo.Mass] = 0
	x[dynamo.GrainSugar] = 0
	return x, nil
}

func boilToCool(from dynamo.State, _ stages.ParameterSet) (dynamo.State, error) {
	x := from.Clone()
	// hop matter settles out in the whirlpool
	x[dynamo.AlphaAcid] = 0
	x[dynamo.Hold] = 0
	x[dynamo.Evaporated] = 0
	return x, nil
}

func coolToFerment(from dynamo.State, ps stages.ParameterSet) (dynamo.State, error) {
	x := from.Clone()
	x[dynamo.Biomass] = ps.Fermentation.PitchRate
	x[dynamo.Ethanol] = 0
	x[dynamo.CO2] = 0
	x[dynamo.Diacetyl] = 0
	return x, nil
}

func fermentToCondition(from dynamo.State, _ stages.ParameterSet) (dynamo.State, error) {
	x := from.Clone()
	// fermentation vents to atmosphere
	x[dynamo.CO2] = math.Min(from[dynamo.CO2], stages.CO2Saturation(from[dynamo.Temperature], 1))
	x[dynamo.Biomass] = 0
	return x, nil
}
