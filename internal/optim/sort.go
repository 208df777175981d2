package optim

import (
	"math"
	"sort"
)

// dominates implements constrained domination: a feasible candidate beats an
// infeasible one, infeasible candidates compare by total violation, and
// feasible ones by Pareto dominance.
func dominates(a, b *Candidate) bool {
	switch {
	case a.Feasible && !b.Feasible:
		return true
	case !a.Feasible && b.Feasible:
		return false
	case !a.Feasible && !b.Feasible:
		return a.Violation() < b.Violation()
	}
	return paretoDominates(a.Objectives, b.Objectives)
}

func paretoDominates(a, b []float64) bool {
	better := false
	for i := range a {
		if a[i] > b[i] {
			return false
		}
		if a[i] < b[i] {
			better = true
		}
	}
	return better
}

// nonDominatedSort assigns Rank to every candidate and returns the fronts as
// index lists, best first.
func nonDominatedSort(pop []Candidate) [][]int {
	n := len(pop)
	dominated := make([][]int, n)
	counts := make([]int, n)
	var fronts [][]int
	var current []int

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			switch {
			case dominates(&pop[i], &pop[j]):
				dominated[i] = append(dominated[i], j)
				counts[j]++
			case dominates(&pop[j], &pop[i]):
				dominated[j] = append(dominated[j], i)
				counts[i]++
			}
		}
	}
	for i := 0; i < n; i++ {
		if counts[i] == 0 {
			pop[i].Rank = 0
			current = append(current, i)
		}
	}

	for rank := 0; len(current) > 0; rank++ {
		fronts = append(fronts, current)
		var next []int
		for _, i := range current {
			for _, j := range dominated[i] {
				counts[j]--
				if counts[j] == 0 {
					pop[j].Rank = rank + 1
					next = append(next, j)
				}
			}
		}
		sort.Ints(next)
		current = next
	}
	return fronts
}

// assignCrowding sets the crowding distance of one front. Boundary points
// get +Inf; objectives with a zero or non-finite span contribute nothing.
func assignCrowding(pop []Candidate, front []int) {
	for _, i := range front {
		pop[i].Crowding = 0
	}
	if len(front) <= 2 {
		for _, i := range front {
			pop[i].Crowding = math.Inf(1)
		}
		return
	}

	nObj := 0
	for _, i := range front {
		if len(pop[i].Objectives) > nObj {
			nObj = len(pop[i].Objectives)
		}
	}

	order := make([]int, len(front))
	for m := 0; m < nObj; m++ {
		copy(order, front)
		obj := func(i int) float64 {
			if m >= len(pop[i].Objectives) {
				return math.Inf(1)
			}
			return pop[i].Objectives[m]
		}
		sort.SliceStable(order, func(a, b int) bool { return obj(order[a]) < obj(order[b]) })

		lo, hi := obj(order[0]), obj(order[len(order)-1])
		pop[order[0]].Crowding = math.Inf(1)
		pop[order[len(order)-1]].Crowding = math.Inf(1)
		span := hi - lo
		if span <= 0 || math.IsInf(span, 0) || math.IsNaN(span) {
			continue
		}
		for k := 1; k < len(order)-1; k++ {
			gap := (obj(order[k+1]) - obj(order[k-1])) / span
			if !math.IsNaN(gap) && !math.IsInf(gap, 0) {
				pop[order[k]].Crowding += gap
			}
		}
	}
}

// crowdedLess reports whether a is preferred to b: lower rank, then larger
// crowding distance.
func crowdedLess(a, b *Candidate) bool {
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	return a.Crowding > b.Crowding
}

// selectSurvivors keeps the best n of pool by rank and crowding.
func selectSurvivors(pool []Candidate, n int) []Candidate {
	fronts := nonDominatedSort(pool)
	out := make([]Candidate, 0, n)
	for _, front := range fronts {
		assignCrowding(pool, front)
		if len(out)+len(front) <= n {
			for _, i := range front {
				out = append(out, pool[i])
			}
			if len(out) == n {
				break
			}
			continue
		}
		last := append([]int(nil), front...)
		sort.SliceStable(last, func(a, b int) bool { return pool[last[a]].Crowding > pool[last[b]].Crowding })
		for _, i := range last[:n-len(out)] {
			out = append(out, pool[i])
		}
		break
	}
	return out
}

// firstFront returns the feasible non-dominated members of pop.
func firstFront(pop []Candidate) []Candidate {
	var front []Candidate
	for i := range pop {
		if pop[i].Rank == 0 && pop[i].Feasible {
			front = append(front, pop[i].clone())
		}
	}
	sort.SliceStable(front, func(a, b int) bool { return front[a].Objectives[0] < front[b].Objectives[0] })
	return front
}
