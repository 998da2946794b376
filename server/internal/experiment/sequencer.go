package experiment

import "github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"

// Sequencer walks the ordered conditions and counts trials in the current one.
type Sequencer struct {
	conditions []models.Condition
	quota      int
	index      int
	completed  int
	balance    *Balance
}

// NewSequencer starts at the first condition. balance is reset whenever a
// semi-predictable block is entered; it may be nil.
func NewSequencer(conditions []models.Condition, quota int, balance *Balance) *Sequencer {
	s := &Sequencer{
		conditions: append([]models.Condition(nil), conditions...),
		quota:      quota,
		balance:    balance,
	}
	s.enter()
	return s
}

// Current returns the condition being run. Calling it once Done reports true
// is a programming error.
func (s *Sequencer) Current() models.Condition {
	if s.Done() {
		panic("experiment: Current called after the session completed")
	}
	return s.conditions[s.index]
}

// Index is the position of the current condition.
func (s *Sequencer) Index() int { return s.index }

// TrialsCompleted counts finished trials in the current condition.
func (s *Sequencer) TrialsCompleted() int { return s.completed }

// Done reports whether every condition has been run.
func (s *Sequencer) Done() bool { return s.index >= len(s.conditions) }

// CompleteTrial counts one finished trial and advances when the quota is
// reached. It reports whether the session is now complete.
func (s *Sequencer) CompleteTrial() bool {
	if s.Done() {
		return true
	}
	s.completed++
	if s.completed >= s.quota {
		return s.Advance()
	}
	return false
}

// Advance moves to the next condition and resets its counters. It reports
// true once it has moved past the last condition; that is terminal.
func (s *Sequencer) Advance() bool {
	if s.Done() {
		return true
	}
	s.index++
	s.completed = 0
	if s.Done() {
		return true
	}
	s.enter()
	return false
}

func (s *Sequencer) enter() {
	if s.balance != nil && !s.Done() && s.conditions[s.index] == models.SemiPredictable {
		s.balance.Reset()
	}
}
