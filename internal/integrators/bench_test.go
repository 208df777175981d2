package integrators

import (
	"testing"

	"github.com/san-kum/brewsim/internal/dynamo"
)

func BenchmarkRK4(b *testing.B) {
	integrator := NewRK4()
	dyn := &harmonicOscillator{}
	x := dynamo.State{1.0, 0.0}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x = integrator.Step(dyn, x, 0, 0.01)
	}
}

func BenchmarkRK45(b *testing.B) {
	integrator := NewRK45(1e-6, 1e-9)
	dyn := &harmonicOscillator{}
	x := dynamo.State{1.0, 0.0}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x, _ = integrator.Attempt(dyn, x, 0, 0.01)
	}
}

func BenchmarkSolverDecay(b *testing.B) {
	solver := NewSolver(NewRK45(1e-6, 1e-9), dynamo.DefaultConfig())
	dyn := decay{rate: 1}
	x0 := dynamo.State{1.0}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := solver.Solve(dyn, x0, dynamo.Span{End: 10}, nil); err != nil {
			b.Fatal(err)
		}
	}
}
