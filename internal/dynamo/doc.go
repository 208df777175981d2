// Package dynamo provides core simulation primitives for the brewing process.
//
// The package defines the fundamental types shared by every stage model,
// the integrators and the pipeline:
//
//   - [State]: the process state vector, indexed by [Field]
//   - [System]: interface for ODE systems (dX/dt = f(X, t))
//   - [Span]: a time interval in hours
//   - [Sample]: one (time, state) point of a trace
//   - [Config]: numerical settings for the adaptive solver
//
// # Example
//
//	x0, err := dynamo.ParseState(map[string]float64{"grain_mass": 5, "temperature": 18})
//	if err != nil {
//		return err
//	}
//	samples, err := solver.Solve(model, x0, dynamo.Span{End: 1}, nil)
//
// # Thread Safety
//
// States are plain slices and must be cloned before being shared between
// goroutines. Nothing in this package holds global mutable state.
package dynamo
