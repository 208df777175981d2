package metrics

import (
	"math"

	"github.com/san-kum/brewsim/internal/dynamo"
)

// OffFlavorScore sums the diacetyl level over its taste threshold and the
// relative misses on bitterness and carbonation. Zero is a perfect beer.
func OffFlavorScore(x dynamo.State, targets Targets) float64 {
	return x[dynamo.Diacetyl]/targets.DiacetylThreshold +
		math.Abs(x[dynamo.IsoAlpha]-targets.IBU)/targets.IBU +
		math.Abs(x[dynamo.CO2]-targets.CO2)/targets.CO2
}

// OffFlavor scores the last observed state.
type OffFlavor struct {
	name    string
	targets Targets
	last    dynamo.State
}

func NewOffFlavor(targets Targets) *OffFlavor {
	return &OffFlavor{name: "off_flavor", targets: targets}
}

func (o *OffFlavor) Name() string { return o.name }

func (o *OffFlavor) Observe(stage string, x dynamo.State, t float64) {
	o.last = x
}

func (o *OffFlavor) Value() float64 {
	if o.last == nil {
		return 0
	}
	return OffFlavorScore(o.last, o.targets)
}

func (o *OffFlavor) Reset() { o.last = nil }
