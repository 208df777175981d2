package metrics

import (
	"math"

	"github.com/san-kum/brewsim/internal/dynamo"
)

// Energy is the process energy spent over the observed trace in kJ.
type Energy struct {
	name    string
	first   float64
	last    float64
	samples int
}

func NewEnergy() *Energy {
	return &Energy{name: "energy"}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(stage string, x dynamo.State, t float64) {
	if e.samples == 0 {
		e.first = x[dynamo.Energy]
	}
	e.last = x[dynamo.Energy]
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.last - e.first
}

func (e *Energy) Reset() {
	e.first = 0
	e.last = 0
	e.samples = 0
}

// Peak tracks the maximum of one field.
type Peak struct {
	name  string
	field dynamo.Field
	max   float64
	seen  bool
}

func NewPeak(name string, field dynamo.Field) *Peak {
	return &Peak{name: name, field: field}
}

func (p *Peak) Name() string { return p.name }

func (p *Peak) Observe(stage string, x dynamo.State, t float64) {
	if !p.seen {
		p.max = x[p.field]
		p.seen = true
		return
	}
	p.max = math.Max(p.max, x[p.field])
}

func (p *Peak) Value() float64 {
	if !p.seen {
		return 0
	}
	return p.max
}

func (p *Peak) Reset() {
	p.max = 0
	p.seen = false
}
