package experiment

import (
	"testing"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
	"github.com/stretchr/testify/require"
)

// scriptedRandom returns fixed draws so tests can place onsets exactly.
type scriptedRandom struct {
	uniform float64
	picks   []int
	next    int
}

func (s *scriptedRandom) Uniform(low, high float64) float64 {
	if high <= low {
		return low
	}
	if s.uniform < low || s.uniform > high {
		return low
	}
	return s.uniform
}

func (s *scriptedRandom) Intn(n int) int {
	if len(s.picks) == 0 {
		return 0
	}
	v := s.picks[s.next%len(s.picks)] % n
	s.next++
	return v
}

func protocolFor(conds ...models.Condition) models.Protocol {
	p := models.DefaultProtocol()
	p.Conditions = conds
	return p
}

func newTestMachine(t *testing.T, p models.Protocol, rng Randomizer, opts ...RecorderOption) (*Machine, *ManualClock, *Recorder) {
	t.Helper()
	clock := &ManualClock{}
	rec := NewRecorder("TEST01", opts...)
	m, err := NewMachine(p, clock, rng, rec)
	require.NoError(t, err)
	return m, clock, rec
}

// startTrial advances past the intertrial interval and ticks once so the
// machine enters an active trial. It returns the trial start instant.
func startTrial(t *testing.T, m *Machine, clock *ManualClock) float64 {
	t.Helper()
	st := m.State()
	require.Equal(t, IntertrialWait, st.Phase)
	clock.Set(st.WaitStartMs + st.IntertrialIntervalMs)
	_, err := m.Tick()
	require.NoError(t, err)
	require.Equal(t, ActiveTrial, m.State().Phase)
	return clock.NowMs()
}
