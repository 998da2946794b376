package experiment

import (
	"fmt"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
)

// Balance counts how often each semi-predictable candidate has been used in
// the current block.
type Balance struct {
	candidates []float64
	counts     []int
}

func NewBalance(candidates []float64) *Balance {
	return &Balance{
		candidates: append([]float64(nil), candidates...),
		counts:     make([]int, len(candidates)),
	}
}

// Reset zeroes every count.
func (b *Balance) Reset() {
	for i := range b.counts {
		b.counts[i] = 0
	}
}

// Count returns the uses of candidate in this block.
func (b *Balance) Count(candidate float64) int {
	for i, c := range b.candidates {
		if c == candidate {
			return b.counts[i]
		}
	}
	return 0
}

// Counts returns a copy of the usage map.
func (b *Balance) Counts() map[float64]int {
	out := make(map[float64]int, len(b.candidates))
	for i, c := range b.candidates {
		out[c] = b.counts[i]
	}
	return out
}

// Selector picks the onset time for the next trial.
type Selector struct {
	protocol models.Protocol
	rng      Randomizer
}

func NewSelector(p models.Protocol, rng Randomizer) *Selector {
	return &Selector{protocol: p, rng: rng}
}

// PerCandidateQuota is how many times each semi-predictable candidate may be
// used in one block. The division truncates; Validate rejects protocols where
// that would matter.
func (s *Selector) PerCandidateQuota() int {
	return s.protocol.TrialsPerCondition / len(s.protocol.SemiPredictableTimes)
}

// SelectTargetTime returns the onset for a trial of cond. For the
// semi-predictable condition the chosen candidate's count in balance is
// incremented.
func (s *Selector) SelectTargetTime(cond models.Condition, balance *Balance) (float64, error) {
	switch cond {
	case models.Predictable:
		return s.protocol.PredictableTime, nil
	case models.Unpredictable:
		return s.rng.Uniform(s.protocol.UnpredictableLow(), s.protocol.UnpredictableHigh()), nil
	case models.SemiPredictable:
		return s.selectBalanced(balance)
	default:
		return 0, fmt.Errorf("select target time: unknown condition %d", int(cond))
	}
}

func (s *Selector) selectBalanced(balance *Balance) (float64, error) {
	quota := s.PerCandidateQuota()
	eligible := make([]int, 0, len(balance.candidates))
	for i := range balance.candidates {
		if balance.counts[i] < quota {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		return 0, fmt.Errorf("%w: every candidate reached its quota of %d", ErrBalanceExhausted, quota)
	}

	chosen := eligible[s.rng.Intn(len(eligible))]
	balance.counts[chosen]++
	return balance.candidates[chosen], nil
}
