package integrators

import "github.com/san-kum/brewsim/internal/dynamo"

// Dormand-Prince 5(4) tableau. Row i of dpA holds the weights of k1..ki
// for stage i+1, and its last row is the fifth-order solution. dpE is the
// difference between the fifth- and fourth-order weights, FSAL stage included.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [6][]float64{
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	dpE = [7]float64{
		71.0 / 57600, 0, -71.0 / 16695, 71.0 / 1920, -17253.0 / 339200, 22.0 / 525, -1.0 / 40,
	}
)

// RK45 is the Dormand-Prince 5(4) embedded pair. The fifth-order solution
// is propagated; the difference to the fourth-order one is the error estimate.
type RK45 struct {
	rtol float64
	atol float64
}

func NewRK45(rtol, atol float64) *RK45 {
	return &RK45{rtol: rtol, atol: atol}
}

func (r *RK45) Order() int { return 4 }

// Attempt takes one trial step and returns the new state with the scaled
// error norm. The step is acceptable when the norm is at most 1.
func (r *RK45) Attempt(dyn dynamo.System, x dynamo.State, t, dt float64) (dynamo.State, float64) {
	n := len(x)
	var k [7]dynamo.State
	k[0] = dyn.Derive(x, t)

	// the last row of dpA is the fifth-order solution, so the seventh
	// derivative is taken at the propagated state
	var xNew dynamo.State
	for s, row := range dpA {
		xs := make(dynamo.State, n)
		for i := range xs {
			sum := 0.0
			for j, a := range row {
				sum += a * k[j][i]
			}
			xs[i] = x[i] + dt*sum
		}
		k[s+1] = dyn.Derive(xs, t+dpC[s+1]*dt)
		xNew = xs
	}

	est := make(dynamo.State, n)
	for i := range est {
		for j, e := range dpE {
			est[i] += e * k[j][i]
		}
	}
	return xNew, errorNorm(est.Scale(dt), x, xNew, r.atol, r.rtol)
}
