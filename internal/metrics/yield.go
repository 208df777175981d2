package metrics

import (
	"math"

	"github.com/san-kum/brewsim/internal/dynamo"
)

// Yield is the ethanol mass in grams held in the final volume.
type Yield struct {
	name string
	last dynamo.State
}

func NewYield() *Yield {
	return &Yield{name: "yield"}
}

func (y *Yield) Name() string { return y.name }

func (y *Yield) Observe(stage string, x dynamo.State, t float64) {
	y.last = x
}

func (y *Yield) Value() float64 {
	if y.last == nil {
		return 0
	}
	return EthanolMass(y.last)
}

func (y *Yield) Reset() { y.last = nil }

// EthanolMass is Ethanol (g/L) times Volume (L).
func EthanolMass(x dynamo.State) float64 {
	return x[dynamo.Ethanol] * x[dynamo.Volume]
}

// Attenuation is the fraction of the peak wort sugar that was fermented.
type Attenuation struct {
	name  string
	peak  float64
	final float64
}

func NewAttenuation() *Attenuation {
	return &Attenuation{name: "attenuation"}
}

func (a *Attenuation) Name() string { return a.name }

func (a *Attenuation) Observe(stage string, x dynamo.State, t float64) {
	a.peak = math.Max(a.peak, x[dynamo.Sugar])
	a.final = x[dynamo.Sugar]
}

func (a *Attenuation) Value() float64 {
	if a.peak <= 0 {
		return 0
	}
	return 1 - a.final/a.peak
}

func (a *Attenuation) Reset() {
	a.peak = 0
	a.final = 0
}
