package optim

import (
	"math"
	"sort"
)

// Hypervolume is the exact volume dominated by points (minimisation) and
// bounded by ref, computed by slicing along the last objective. Points that
// do not strictly dominate ref contribute nothing.
func Hypervolume(points [][]float64, ref []float64) float64 {
	d := len(ref)
	pts := make([][]float64, 0, len(points))
	for _, p := range points {
		if len(p) != d {
			continue
		}
		inside := true
		for i := range p {
			if !(p[i] < ref[i]) || math.IsNaN(p[i]) {
				inside = false
				break
			}
		}
		if inside {
			pts = append(pts, p)
		}
	}
	if d == 0 || len(pts) == 0 {
		return 0
	}
	return slice(pts, ref, d)
}

func slice(pts [][]float64, ref []float64, d int) float64 {
	if len(pts) == 0 {
		return 0
	}
	if d == 1 {
		best := pts[0][0]
		for _, p := range pts[1:] {
			best = math.Min(best, p[0])
		}
		return ref[0] - best
	}
	if d == 2 {
		sorted := append([][]float64(nil), pts...)
		sort.Slice(sorted, func(a, b int) bool {
			if sorted[a][0] != sorted[b][0] {
				return sorted[a][0] < sorted[b][0]
			}
			return sorted[a][1] < sorted[b][1]
		})
		area := 0.0
		ceiling := ref[1]
		for _, p := range sorted {
			if p[1] < ceiling {
				area += (ref[0] - p[0]) * (ceiling - p[1])
				ceiling = p[1]
			}
		}
		return area
	}

	k := d - 1
	sorted := append([][]float64(nil), pts...)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a][k] < sorted[b][k] })

	volume := 0.0
	for i := range sorted {
		top := ref[k]
		if i+1 < len(sorted) {
			top = sorted[i+1][k]
		}
		depth := top - sorted[i][k]
		if depth <= 0 {
			continue
		}
		volume += slice(sorted[:i+1], ref, k) * depth
	}
	return volume
}
