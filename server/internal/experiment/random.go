package experiment

import "math/rand/v2"

// Randomizer is the source of every random draw the scheduler makes.
type Randomizer interface {
	// Uniform returns a value in [low, high). It returns low when high <= low.
	Uniform(low, high float64) float64
	// Intn returns a value in [0, n).
	Intn(n int) int
}

// RandomSource is a seeded PCG Randomizer.
type RandomSource struct {
	r *rand.Rand
}

func NewRandomSource(seed uint64) *RandomSource {
	return &RandomSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *RandomSource) Uniform(low, high float64) float64 {
	if high <= low {
		return low
	}
	return low + s.r.Float64()*(high-low)
}

func (s *RandomSource) Intn(n int) int {
	return s.r.IntN(n)
}
