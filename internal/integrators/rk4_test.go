package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/brewsim/internal/dynamo"
)

func TestRK4Accuracy(t *testing.T) {
	dyn := &harmonicOscillator{}
	integ := NewRK4()

	x := dynamo.State{1.0, 0.0}
	dt := 0.01
	steps := 100

	for i := 0; i < steps; i++ {
		x = integ.Step(dyn, x, float64(i)*dt, dt)
	}

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)

	if math.Abs(x[0]-expectedX) > 1e-4 {
		t.Errorf("position error too large: got %.6f, expected %.6f", x[0], expectedX)
	}

	if math.Abs(x[1]-expectedV) > 1e-4 {
		t.Errorf("velocity error too large: got %.6f, expected %.6f", x[1], expectedV)
	}
}

func TestStepDoubling_ExtrapolatesBeyondRK4(t *testing.T) {
	dyn := decay{rate: 2}
	x0 := dynamo.State{1.0}
	dt := 0.2
	exact := math.Exp(-2 * dt)

	plain := NewRK4().Step(dyn, x0, 0, dt)
	doubled, errNorm := NewStepDoubling(NewRK4(), 1e-6, 1e-9).Attempt(dyn, x0, 0, dt)

	if math.Abs(doubled[0]-exact) >= math.Abs(plain[0]-exact) {
		t.Errorf("extrapolated step not more accurate: plain=%e doubled=%e",
			math.Abs(plain[0]-exact), math.Abs(doubled[0]-exact))
	}
	if errNorm <= 0 {
		t.Errorf("expected a positive error estimate, got %v", errNorm)
	}
}

func TestStepDoubling_RichardsonEstimate(t *testing.T) {
	dyn := &harmonicOscillator{}
	x0 := dynamo.State{1.0, 0.5}
	dt := 0.3

	rk := NewRK4()
	full := rk.Step(dyn, x0, 0, dt)
	half := rk.Step(dyn, rk.Step(dyn, x0, 0, dt/2), dt/2, dt/2)

	got, errNorm := NewStepDoubling(NewRK4(), 1e-6, 1e-9).Attempt(dyn, x0, 0, dt)
	wantNorm := 0.0
	for i := range x0 {
		est := (half[i] - full[i]) / 15
		if math.Abs(got[i]-(half[i]+est)) > 1e-15 {
			t.Errorf("component %d: got %v want %v", i, got[i], half[i]+est)
		}
		scale := 1e-9 + 1e-6*math.Max(math.Abs(x0[i]), math.Abs(half[i]))
		wantNorm = math.Max(wantNorm, math.Abs(est)/scale)
	}
	if math.Abs(errNorm-wantNorm) > 1e-9*wantNorm {
		t.Errorf("error norm %v, want %v", errNorm, wantNorm)
	}
}
