package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/brewsim/internal/dynamo"
)

// Stepper takes a trial step and reports its scaled error norm.
type Stepper interface {
	Attempt(dyn dynamo.System, x dynamo.State, t, dt float64) (dynamo.State, float64)
	Order() int
}

// errorNorm is the largest component of |est| scaled by atol + rtol*max(|x|, |xNew|).
// A NaN anywhere makes the step unacceptable.
func errorNorm(est, x, xNew dynamo.State, atol, rtol float64) float64 {
	norm := 0.0
	for i := range est {
		scale := atol + rtol*math.Max(math.Abs(x[i]), math.Abs(xNew[i]))
		norm = math.Max(norm, math.Abs(est[i])/scale)
	}
	if math.IsNaN(norm) {
		return math.Inf(1)
	}
	return norm
}

// StepHook runs after every accepted step. It may return a corrected state;
// a non-nil error aborts the solve.
type StepHook func(t float64, x dynamo.State) (dynamo.State, error)

// Solver integrates a System over a Span with adaptive step-size control.
// It holds no per-solve state for RK45 and is safe for concurrent use in
// that case; RK4-backed solvers are not.
type Solver struct {
	stepper Stepper
	cfg     dynamo.Config
}

func NewSolver(stepper Stepper, cfg dynamo.Config) *Solver {
	return &Solver{stepper: stepper, cfg: cfg}
}

// Methods lists the names New accepts; "dopri5" is an alias of "rk45".
var Methods = []string{"rk45", "dopri5", "rk4"}

// New builds a solver for a named method (see Methods).
func New(method string, cfg dynamo.Config) (*Solver, error) {
	switch method {
	case "", "rk45", "dopri5":
		return NewSolver(NewRK45(cfg.Tolerance, cfg.AbsTolerance), cfg), nil
	case "rk4":
		return NewSolver(NewStepDoubling(NewRK4(), cfg.Tolerance, cfg.AbsTolerance), cfg), nil
	default:
		return nil, fmt.Errorf("unknown integrator: %s", method)
	}
}

func (s *Solver) Config() dynamo.Config { return s.cfg }

// Solve integrates dyn from x0 over span and returns every accepted sample,
// starting with (span.Start, x0). On failure the returned error is a
// *dynamo.SimulationError holding the last accepted state.
func (s *Solver) Solve(dyn dynamo.System, x0 dynamo.State, span dynamo.Span, hook StepHook) ([]dynamo.Sample, error) {
	if err := s.validate(x0, span); err != nil {
		return nil, err
	}

	x := x0.Clone()
	t := span.Start
	samples := []dynamo.Sample{{Time: t, State: x.Clone()}}
	if span.Length() == 0 {
		return samples, nil
	}

	maxDt := s.cfg.MaxDt
	if maxDt <= 0 {
		maxDt = span.Length()
	}
	dt := s.cfg.InitialDt
	if dt <= 0 {
		dt = span.Length() / 100
	}
	dt = math.Min(dt, maxDt)

	exponent := -1.0 / float64(s.stepper.Order()+1)
	retries := 0
	steps := 0

	for t < span.End {
		if steps >= s.cfg.MaxSteps {
			return samples, &dynamo.SimulationError{Step: steps, Time: t, State: x.Clone(), Wrapped: dynamo.ErrNotConverged}
		}

		h := dt
		last := false
		if t+h >= span.End {
			h = span.End - t
			last = true
		}

		xNew, errNorm := s.stepper.Attempt(dyn, x, t, h)
		if errNorm > 1 || !xNew.IsValid() {
			retries++
			dt = h / 2
			if retries > s.cfg.MaxRetries || dt < s.cfg.MinDt {
				cause := dynamo.ErrStepTooSmall
				if !xNew.IsValid() {
					cause = fmt.Errorf("%w: %w", dynamo.ErrStepTooSmall, dynamo.ErrInvalidState)
				}
				return samples, &dynamo.SimulationError{Step: steps, Time: t, State: x.Clone(), Wrapped: cause}
			}
			continue
		}

		retries = 0
		steps++
		if last {
			t = span.End
		} else {
			t += h
		}

		if hook != nil {
			corrected, err := hook(t, xNew)
			if err != nil {
				return samples, &dynamo.SimulationError{Step: steps, Time: t, State: x.Clone(), Wrapped: err}
			}
			xNew = corrected
		}
		x = xNew
		samples = append(samples, dynamo.Sample{Time: t, State: x.Clone()})

		scale := s.cfg.MaxScale
		if errNorm > 0 {
			scale = math.Min(s.cfg.MaxScale, s.cfg.Safety*math.Pow(errNorm, exponent))
		}
		dt = math.Min(h*scale, maxDt)
	}

	return samples, nil
}

func (s *Solver) validate(x0 dynamo.State, span dynamo.Span) error {
	if len(x0) == 0 {
		return fmt.Errorf("%w: empty initial state", dynamo.ErrDimensionMismatch)
	}
	if !x0.IsValid() {
		return &dynamo.SimulationError{Time: span.Start, State: x0.Clone(), Wrapped: dynamo.ErrInvalidState}
	}
	if span.End < span.Start || math.IsNaN(span.Length()) || math.IsInf(span.Length(), 0) {
		return fmt.Errorf("invalid span [%g, %g]", span.Start, span.End)
	}
	if s.cfg.Tolerance <= 0 || s.cfg.AbsTolerance <= 0 {
		return fmt.Errorf("tolerance must be positive for adaptive stepping")
	}
	return nil
}
