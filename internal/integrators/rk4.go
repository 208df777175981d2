package integrators

import (
	"math"

	"github.com/san-kum/brewsim/internal/dynamo"
)

// RK4 is the classical fixed-step fourth-order Runge-Kutta method. It keeps
// scratch buffers, so a value must not be shared between goroutines.
type RK4 struct {
	k1, k2, k3, k4 dynamo.State
	scratch        dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make(dynamo.State, n)
		r.k2 = make(dynamo.State, n)
		r.k3 = make(dynamo.State, n)
		r.k4 = make(dynamo.State, n)
		r.scratch = make(dynamo.State, n)
	}
}

func (r *RK4) Order() int { return 4 }

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	n := len(x)
	r.ensureScratch(n)

	k1 := dyn.Derive(x, t)
	copy(r.k1, k1)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k1[i]
	}
	k2 := dyn.Derive(r.scratch, t+dt*0.5)
	copy(r.k2, k2)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k2[i]
	}
	k3 := dyn.Derive(r.scratch, t+dt*0.5)
	copy(r.k3, k3)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*r.k3[i]
	}
	k4 := dyn.Derive(r.scratch, t+dt)
	copy(r.k4, k4)

	result := make(dynamo.State, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}

	return result
}

// StepDoubling turns a fixed-step method into an embedded one by comparing
// one full step against two half steps (Richardson extrapolation).
type StepDoubling struct {
	base interface {
		Step(dyn dynamo.System, x dynamo.State, t, dt float64) dynamo.State
		Order() int
	}
	rtol float64
	atol float64
}

func NewStepDoubling(base *RK4, rtol, atol float64) *StepDoubling {
	return &StepDoubling{base: base, rtol: rtol, atol: atol}
}

func (s *StepDoubling) Order() int { return s.base.Order() }

func (s *StepDoubling) Attempt(dyn dynamo.System, x dynamo.State, t, dt float64) (dynamo.State, float64) {
	x1 := s.base.Step(dyn, x, t, dt)
	xHalf := s.base.Step(dyn, x, t, dt/2)
	x2 := s.base.Step(dyn, xHalf, t+dt/2, dt/2)

	est := x2.Sub(x1).Scale(1 / (math.Pow(2, float64(s.base.Order())) - 1))
	return x2.Add(est), errorNorm(est, x, x2, s.atol, s.rtol)
}
