package optim

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// NSGA2 is the elitist non-dominated sorting genetic algorithm with
// constrained domination.
type NSGA2 struct {
	cfg      Config
	progress func(GenerationStats)
}

func NewNSGA2(cfg Config) *NSGA2 {
	return &NSGA2{cfg: cfg}
}

func (n *NSGA2) Config() Config { return n.cfg }

// OnGeneration registers fn to receive the statistics of every completed
// generation, on the optimizing goroutine.
func (n *NSGA2) OnGeneration(fn func(GenerationStats)) *NSGA2 {
	n.progress = fn
	return n
}

// Optimize evolves a population within bounds. Cancellation is checked
// between generations; a cancelled search returns the best front found so
// far together with ctx.Err(). An initial population without a single
// feasible candidate aborts with a *SearchStalledError.
func (n *NSGA2) Optimize(ctx context.Context, eval Evaluator, bounds []Bound) (*Result, error) {
	if err := validateBounds(bounds); err != nil {
		return nil, err
	}
	cfg := n.cfg
	if cfg.PopulationSize < 4 {
		return nil, fmt.Errorf("optim: population size %d is below 4", cfg.PopulationSize)
	}
	if cfg.MaxGenerations < 1 {
		return nil, fmt.Errorf("optim: max generations must be positive")
	}
	if cfg.Reference != nil && len(cfg.Reference) == 0 {
		cfg.Reference = nil
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	result := &Result{Reference: append([]float64(nil), cfg.Reference...)}
	log := logrus.WithField("component", "nsga2")

	if err := ctx.Err(); err != nil {
		result.Reason = ReasonCancelled
		return result, err
	}

	points := make([][]float64, cfg.PopulationSize)
	for i := range points {
		points[i] = randomPoint(rng, bounds)
	}
	pop := n.evaluate(ctx, eval, points)
	stats := summarize(0, pop)

	if stats.Feasible == 0 {
		result.Reason = ReasonStalled
		result.Population = pop
		result.Stats = append(result.Stats, stats)
		return result, stalled(0, pop)
	}
	if result.Reference == nil {
		result.Reference = deriveReference(pop)
	}

	pop = selectSurvivors(pop, cfg.PopulationSize)
	prevHV := n.record(result, &stats, pop)
	log.WithField("hypervolume", prevHV).Debugf("generation 0: %d/%d feasible", stats.Feasible, stats.Evaluated)

	stall := 0
	result.Reason = ReasonMaxGenerations
	for gen := 1; gen < cfg.MaxGenerations; gen++ {
		if err := ctx.Err(); err != nil {
			result.Reason = ReasonCancelled
			n.finish(result, pop, gen)
			return result, err
		}

		offspring := n.breed(rng, pop, bounds)
		children := n.evaluate(ctx, eval, offspring)
		stats := summarize(gen, children)

		pool := append(append(make([]Candidate, 0, len(pop)+len(children)), pop...), children...)
		pop = selectSurvivors(pool, cfg.PopulationSize)
		hv := n.record(result, &stats, pop)

		// the elite front survives selection, so it is returned with the error
		if stats.Feasible == 0 {
			log.Warnf("generation %d: no feasible offspring (%d failed)", gen, stats.Failed)
			result.Reason = ReasonStalled
			n.finish(result, pop, gen+1)
			return result, stalled(gen, children)
		}
		log.WithField("hypervolume", hv).Debugf("generation %d: %d/%d feasible, front %d",
			gen, stats.Feasible, stats.Evaluated, stats.FrontSize)

		if cfg.StallWindow > 0 {
			change := math.Abs(hv-prevHV) / math.Max(math.Abs(prevHV), 1e-300)
			if change <= cfg.StallDelta {
				stall++
			} else {
				stall = 0
			}
			prevHV = hv
			if stall >= cfg.StallWindow {
				result.Reason = ReasonConverged
				n.finish(result, pop, gen+1)
				return result, nil
			}
		}
	}

	n.finish(result, pop, cfg.MaxGenerations)
	return result, nil
}

func (n *NSGA2) breed(rng *rand.Rand, pop []Candidate, bounds []Bound) [][]float64 {
	size := n.cfg.PopulationSize
	out := make([][]float64, 0, size+1)
	for len(out) < size {
		p1 := tournament(rng, pop)
		p2 := tournament(rng, pop)
		c1, c2 := sbx(rng, p1.Params, p2.Params, bounds, n.cfg.CrossoverRate, n.cfg.CrossoverEta)
		mutate(rng, c1, bounds, n.cfg.MutationRate, n.cfg.MutationEta)
		mutate(rng, c2, bounds, n.cfg.MutationRate, n.cfg.MutationEta)
		out = append(out, c1, c2)
	}
	return out[:size]
}

// evaluate runs every point on a bounded worker pool. Results are written by
// index, so no locking is needed. Evaluations ignore cancellation; the
// search stops between generations instead.
func (n *NSGA2) evaluate(ctx context.Context, eval Evaluator, points [][]float64) []Candidate {
	evalCtx := context.WithoutCancel(ctx)
	out := make([]Candidate, len(points))

	var g errgroup.Group
	g.SetLimit(n.cfg.workers())
	for i, x := range points {
		i, x := i, x
		g.Go(func() error {
			out[i] = evaluateOne(evalCtx, eval, x)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func evaluateOne(ctx context.Context, eval Evaluator, x []float64) Candidate {
	c := Candidate{Params: append([]float64(nil), x...)}
	ev, err := eval.Evaluate(ctx, c.Params)
	if err == nil && len(ev.Objectives) == 0 {
		err = fmt.Errorf("evaluation returned no objectives")
	}
	if err == nil {
		for _, v := range ev.Objectives {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				err = fmt.Errorf("non-finite objective %v", ev.Objectives)
				break
			}
		}
	}
	if err != nil {
		c.Failure = err.Error()
		evaluations.WithLabelValues("failed").Inc()
		return c
	}

	c.Objectives = ev.Objectives
	c.Violations = ev.Violations
	c.Feasible = c.Violation() == 0
	if c.Feasible {
		evaluations.WithLabelValues("feasible").Inc()
	} else {
		evaluations.WithLabelValues("infeasible").Inc()
	}
	return c
}

// record appends stats for a generation and returns the hypervolume of the
// surviving front.
func (n *NSGA2) record(result *Result, stats *GenerationStats, pop []Candidate) float64 {
	front := firstFront(pop)
	stats.FrontSize = len(front)
	stats.Hypervolume = Hypervolume(objectivesOf(front), result.Reference)
	result.Stats = append(result.Stats, *stats)
	hypervolume.Set(stats.Hypervolume)
	generations.Inc()
	if n.progress != nil {
		n.progress(*stats)
	}
	return stats.Hypervolume
}

func (n *NSGA2) finish(result *Result, pop []Candidate, gens int) {
	result.Population = pop
	result.Front = firstFront(pop)
	result.Generations = gens
}

func summarize(gen int, cs []Candidate) GenerationStats {
	s := GenerationStats{Generation: gen, Evaluated: len(cs)}
	for i := range cs {
		switch {
		case cs[i].Failure != "":
			s.Failed++
			s.Infeasible++
		case cs[i].Feasible:
			s.Feasible++
		default:
			s.Infeasible++
		}
	}
	return s
}

func stalled(gen int, cs []Candidate) *SearchStalledError {
	err := &SearchStalledError{Generation: gen, Evaluated: len(cs)}
	for i := range cs {
		if cs[i].Failure != "" {
			err.Failed++
			err.LastError = cs[i].Failure
		}
	}
	return err
}

// deriveReference places the reference point 10% of the objective range
// beyond the worst feasible value.
func deriveReference(pop []Candidate) []float64 {
	var lo, hi []float64
	for i := range pop {
		if !pop[i].Feasible {
			continue
		}
		if hi == nil {
			lo = append([]float64(nil), pop[i].Objectives...)
			hi = append([]float64(nil), pop[i].Objectives...)
			continue
		}
		for m, v := range pop[i].Objectives {
			lo[m] = math.Min(lo[m], v)
			hi[m] = math.Max(hi[m], v)
		}
	}
	ref := make([]float64, len(hi))
	for m := range hi {
		pad := 0.1 * (hi[m] - lo[m])
		if pad == 0 {
			pad = 0.1 * math.Max(math.Abs(hi[m]), 1)
		}
		ref[m] = hi[m] + pad
	}
	return ref
}
