package optim

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var unitSquare = []Bound{{Name: "x1", Lower: 0, Upper: 1}, {Name: "x2", Lower: 0, Upper: 1}}

func zdt1(_ context.Context, x []float64) (Evaluation, error) {
	f1 := x[0]
	g := 1 + 9*x[1]
	f2 := g * (1 - math.Sqrt(f1/g))
	return Evaluation{Objectives: []float64{f1, f2}}, nil
}

func zdtConfig() Config {
	cfg := DefaultConfig()
	cfg.PopulationSize = 60
	cfg.MaxGenerations = 100
	cfg.Seed = 7
	cfg.Workers = 4
	cfg.StallWindow = 0
	cfg.Reference = []float64{1.1, 1.1}
	return cfg
}

func TestNSGA2_ZDT1ReachesAnalyticFront(t *testing.T) {
	res, err := NewNSGA2(zdtConfig()).Optimize(context.Background(), EvaluatorFunc(zdt1), unitSquare)
	require.NoError(t, err)

	assert.Equal(t, ReasonMaxGenerations, res.Reason)
	assert.Equal(t, 100, res.Generations)
	assert.Len(t, res.Stats, 100)
	require.NotEmpty(t, res.Front)

	analytic := 0.1 + 2.0/3.0 + 0.11
	assert.InDelta(t, analytic, res.Hypervolume(), 0.03)

	for _, c := range res.Front {
		assert.True(t, c.Feasible)
		assert.Equal(t, 0, c.Rank)
		// on the true front x2 = 0, so f2 = 1 - sqrt(f1)
		assert.InDelta(t, 1-math.Sqrt(c.Objectives[0]), c.Objectives[1], 0.1)
	}

	first, last := res.Stats[0].Hypervolume, res.Stats[len(res.Stats)-1].Hypervolume
	assert.GreaterOrEqual(t, last, first)
}

func TestNSGA2_DeterministicForSeed(t *testing.T) {
	cfg := zdtConfig()
	cfg.MaxGenerations = 15

	a, err := NewNSGA2(cfg).Optimize(context.Background(), EvaluatorFunc(zdt1), unitSquare)
	require.NoError(t, err)
	cfg.Workers = 1
	b, err := NewNSGA2(cfg).Optimize(context.Background(), EvaluatorFunc(zdt1), unitSquare)
	require.NoError(t, err)

	require.Equal(t, len(a.Front), len(b.Front))
	for i := range a.Front {
		assert.Equal(t, a.Front[i].Params, b.Front[i].Params)
	}
}

func TestNSGA2_ExcludesInfeasibleAndFailedCandidates(t *testing.T) {
	eval := EvaluatorFunc(func(ctx context.Context, x []float64) (Evaluation, error) {
		if x[1] > 0.9 {
			return Evaluation{}, errors.New("stage boiling diverged")
		}
		ev, _ := zdt1(ctx, x)
		ev.Violations = []float64{0.5 - x[0]}
		return ev, nil
	})

	cfg := zdtConfig()
	cfg.MaxGenerations = 30
	res, err := NewNSGA2(cfg).Optimize(context.Background(), eval, unitSquare)
	require.NoError(t, err)
	require.NotEmpty(t, res.Front)

	for _, c := range res.Front {
		assert.True(t, c.Feasible)
		assert.Empty(t, c.Failure)
		assert.GreaterOrEqual(t, c.Params[0], 0.5)
	}

	failed, infeasible := 0, 0
	for _, s := range res.Stats {
		failed += s.Failed
		infeasible += s.Infeasible
	}
	assert.Greater(t, failed, 0, "failures are kept in the statistics")
	assert.Greater(t, infeasible, failed)
}

func TestNSGA2_AllInfeasibleStalls(t *testing.T) {
	eval := EvaluatorFunc(func(ctx context.Context, x []float64) (Evaluation, error) {
		return Evaluation{}, errors.New("mash liquor fully absorbed")
	})

	res, err := NewNSGA2(zdtConfig()).Optimize(context.Background(), eval, unitSquare)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSearchStalled))

	var stall *SearchStalledError
	require.True(t, errors.As(err, &stall))
	assert.Equal(t, 0, stall.Generation)
	assert.Equal(t, 60, stall.Failed)
	assert.Contains(t, err.Error(), "mash liquor fully absorbed")

	require.NotNil(t, res)
	assert.Equal(t, ReasonStalled, res.Reason)
	assert.Empty(t, res.Front)
}

func TestNSGA2_LaterGenerationAllInfeasibleStalls(t *testing.T) {
	var calls atomic.Int64
	eval := EvaluatorFunc(func(ctx context.Context, x []float64) (Evaluation, error) {
		if calls.Add(1) > 8 {
			return Evaluation{}, errors.New("wort boiled dry")
		}
		return zdt1(ctx, x)
	})

	cfg := zdtConfig()
	cfg.PopulationSize = 8
	cfg.MaxGenerations = 4
	res, err := NewNSGA2(cfg).Optimize(context.Background(), eval, unitSquare)
	require.ErrorIs(t, err, ErrSearchStalled)

	var stall *SearchStalledError
	require.True(t, errors.As(err, &stall))
	assert.Equal(t, 1, stall.Generation)
	assert.Equal(t, 8, stall.Failed)

	require.NotNil(t, res)
	assert.Equal(t, ReasonStalled, res.Reason)
	assert.Equal(t, 2, res.Generations)
	assert.Len(t, res.Stats, 2)
	require.NotEmpty(t, res.Front, "the generation 0 front is kept")
	for _, c := range res.Front {
		assert.True(t, c.Feasible)
	}
	assert.EqualValues(t, 16, calls.Load())
}

func TestNSGA2_CancelReturnsPartialFront(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int64
	eval := EvaluatorFunc(func(evalCtx context.Context, x []float64) (Evaluation, error) {
		if calls.Add(1) == 150 {
			cancel()
		}
		// evaluations are shielded from cancellation
		if evalCtx.Err() != nil {
			return Evaluation{}, evalCtx.Err()
		}
		return zdt1(evalCtx, x)
	})

	cfg := zdtConfig()
	cfg.PopulationSize = 50
	res, err := NewNSGA2(cfg).Optimize(ctx, eval, unitSquare)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)

	assert.Equal(t, ReasonCancelled, res.Reason)
	assert.Less(t, res.Generations, cfg.MaxGenerations)
	assert.NotEmpty(t, res.Front)
	for _, s := range res.Stats {
		assert.Zero(t, s.Failed)
	}
}

func TestNSGA2_StopsWhenHypervolumeSettles(t *testing.T) {
	cfg := zdtConfig()
	cfg.MaxGenerations = 500
	cfg.StallWindow = 5
	cfg.StallDelta = 1e-3

	res, err := NewNSGA2(cfg).Optimize(context.Background(), EvaluatorFunc(zdt1), unitSquare)
	require.NoError(t, err)
	assert.Equal(t, ReasonConverged, res.Reason)
	assert.Less(t, res.Generations, 500)
}

func TestNSGA2_DerivesReference(t *testing.T) {
	cfg := zdtConfig()
	cfg.Reference = nil
	cfg.MaxGenerations = 5

	var seen []int
	res, err := NewNSGA2(cfg).
		OnGeneration(func(s GenerationStats) { seen = append(seen, s.Generation) }).
		Optimize(context.Background(), EvaluatorFunc(zdt1), unitSquare)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, seen)
	require.Len(t, res.Reference, 2)
	assert.Greater(t, res.Reference[1], 1.0)
	assert.Greater(t, res.Hypervolume(), 0.0)
}

func TestNSGA2_RejectsBadInput(t *testing.T) {
	_, err := NewNSGA2(zdtConfig()).Optimize(context.Background(), EvaluatorFunc(zdt1), nil)
	assert.Error(t, err)

	_, err = NewNSGA2(zdtConfig()).Optimize(context.Background(), EvaluatorFunc(zdt1),
		[]Bound{{Name: "x", Lower: 1, Upper: 1}})
	assert.Error(t, err)

	cfg := zdtConfig()
	cfg.PopulationSize = 2
	_, err = NewNSGA2(cfg).Optimize(context.Background(), EvaluatorFunc(zdt1), unitSquare)
	assert.Error(t, err)
}

func TestCompose(t *testing.T) {
	type run struct{ a, b float64 }
	eval := Compose(
		func(ctx context.Context, x []float64) (run, error) {
			if x[0] < 0 {
				return run{}, errors.New("negative")
			}
			return run{a: x[0], b: x[0] * 2}, nil
		},
		[]func(run) float64{
			func(r run) float64 { return -r.a },
			func(r run) float64 { return r.b },
		},
		[]func(run) float64{
			func(r run) float64 { return r.b - 1 },
		},
	)

	ev, err := eval.Evaluate(context.Background(), []float64{0.75})
	require.NoError(t, err)
	assert.Equal(t, []float64{-0.75, 1.5}, ev.Objectives)
	assert.Equal(t, []float64{0.5}, ev.Violations)

	_, err = eval.Evaluate(context.Background(), []float64{-1})
	assert.Error(t, err)

	c := evaluateOne(context.Background(), eval, []float64{0.75})
	assert.False(t, c.Feasible)
	assert.Equal(t, 0.5, c.Violation())

	c = evaluateOne(context.Background(), eval, []float64{-1})
	assert.True(t, math.IsInf(c.Violation(), 1))
	assert.Equal(t, "negative", c.Failure)
}
