package optim

import (
	"math"
	"math/rand"
)

// tournament is a binary tournament on (rank, crowding).
func tournament(rng *rand.Rand, pop []Candidate) *Candidate {
	a := &pop[rng.Intn(len(pop))]
	b := &pop[rng.Intn(len(pop))]
	if crowdedLess(b, a) {
		return b
	}
	return a
}

// sbx is bounded simulated binary crossover (Deb and Agrawal). Children
// always lie within bounds.
func sbx(rng *rand.Rand, p1, p2 []float64, bounds []Bound, rate, eta float64) ([]float64, []float64) {
	c1 := append([]float64(nil), p1...)
	c2 := append([]float64(nil), p2...)
	if rng.Float64() > rate {
		return c1, c2
	}

	for i, b := range bounds {
		if rng.Float64() > 0.5 {
			continue
		}
		if math.Abs(p1[i]-p2[i]) < 1e-14 {
			continue
		}
		y1, y2 := math.Min(p1[i], p2[i]), math.Max(p1[i], p2[i])
		u := rng.Float64()

		beta := 1 + 2*(y1-b.Lower)/(y2-y1)
		ch1 := 0.5 * ((y1 + y2) - spread(u, beta, eta)*(y2-y1))
		beta = 1 + 2*(b.Upper-y2)/(y2-y1)
		ch2 := 0.5 * ((y1 + y2) + spread(u, beta, eta)*(y2-y1))

		ch1, ch2 = b.clamp(ch1), b.clamp(ch2)
		if rng.Float64() < 0.5 {
			ch1, ch2 = ch2, ch1
		}
		c1[i], c2[i] = ch1, ch2
	}
	return c1, c2
}

func spread(u, beta, eta float64) float64 {
	alpha := 2 - math.Pow(beta, -(eta+1))
	if u <= 1/alpha {
		return math.Pow(u*alpha, 1/(eta+1))
	}
	return math.Pow(1/(2-u*alpha), 1/(eta+1))
}

// mutate applies bounded polynomial mutation in place.
func mutate(rng *rand.Rand, x []float64, bounds []Bound, rate, eta float64) {
	if rate <= 0 {
		rate = 1 / float64(len(bounds))
	}
	pow := 1 / (eta + 1)
	for i, b := range bounds {
		if rng.Float64() > rate {
			continue
		}
		width := b.Upper - b.Lower
		d1 := (x[i] - b.Lower) / width
		d2 := (b.Upper - x[i]) / width
		u := rng.Float64()

		var dq float64
		if u < 0.5 {
			v := 2*u + (1-2*u)*math.Pow(1-d1, eta+1)
			dq = math.Pow(v, pow) - 1
		} else {
			v := 2*(1-u) + 2*(u-0.5)*math.Pow(1-d2, eta+1)
			dq = 1 - math.Pow(v, pow)
		}
		x[i] = b.clamp(x[i] + dq*width)
	}
}

func randomPoint(rng *rand.Rand, bounds []Bound) []float64 {
	x := make([]float64, len(bounds))
	for i, b := range bounds {
		x[i] = b.Lower + rng.Float64()*(b.Upper-b.Lower)
	}
	return x
}
