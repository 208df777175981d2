package optim

import (
	"context"
	"fmt"
	"math"
)

// GridSearch sweeps an evenly spaced grid over the bounds and keeps the
// feasible point with the lowest value of one objective.
type GridSearch struct {
	bounds    []Bound
	points    int
	objective int
}

func NewGridSearch(bounds []Bound, points, objective int) *GridSearch {
	return &GridSearch{bounds: bounds, points: points, objective: objective}
}

// Values returns the grid coordinates of dimension i.
func (g *GridSearch) Values(i int) []float64 {
	b := g.bounds[i]
	if g.points <= 1 {
		return []float64{(b.Lower + b.Upper) / 2}
	}
	out := make([]float64, g.points)
	step := (b.Upper - b.Lower) / float64(g.points-1)
	for k := range out {
		out[k] = b.Lower + float64(k)*step
	}
	out[len(out)-1] = b.Upper
	return out
}

// Search evaluates every grid point in order and returns the best feasible
// candidate together with every evaluated one. It stops early with
// ctx.Err() when cancelled.
func (g *GridSearch) Search(ctx context.Context, eval Evaluator) (*Candidate, []Candidate, error) {
	if err := validateBounds(g.bounds); err != nil {
		return nil, nil, err
	}

	var (
		best    *Candidate
		all     []Candidate
		stopped error
		recurse func(depth int, current []float64)
	)
	bestVal := math.Inf(1)

	recurse = func(depth int, current []float64) {
		if stopped != nil {
			return
		}
		if depth == len(g.bounds) {
			if err := ctx.Err(); err != nil {
				stopped = err
				return
			}
			c := evaluateOne(ctx, eval, current)
			all = append(all, c)
			if !c.Feasible || g.objective >= len(c.Objectives) {
				return
			}
			if val := c.Objectives[g.objective]; val < bestVal {
				bestVal = val
				kept := c.clone()
				best = &kept
			}
			return
		}

		for _, v := range g.Values(depth) {
			next := append(append([]float64(nil), current...), v)
			recurse(depth+1, next)
		}
	}
	recurse(0, nil)

	if stopped != nil {
		return best, all, stopped
	}
	if best == nil {
		return nil, all, fmt.Errorf("%w: no feasible grid point", ErrSearchStalled)
	}
	return best, all, nil
}
