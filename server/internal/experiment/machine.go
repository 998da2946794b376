package experiment

import (
	"fmt"
	"math"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
	"go.uber.org/zap"
)

// SessionState is the mutable state of one run. Only the Machine writes it.
type SessionState struct {
	ConditionIndex             int               `json:"conditionIndex"`
	Condition                  models.Condition  `json:"condition"`
	TrialsCompletedInCondition int               `json:"trialsCompletedInCondition"`
	Phase                      Phase             `json:"phase"`
	Trial                      *models.TrialSpec `json:"trial,omitempty"`
	StimulusLatched            bool              `json:"stimulusLatched"`
	TrialStartMs               float64           `json:"trialStartMs"`
	TrialDeadlineMs            float64           `json:"trialDeadlineMs"`
	WaitStartMs                float64           `json:"waitStartMs"`
	WaitUntilMs                float64           `json:"waitUntilMs"`
	IntertrialIntervalMs       float64           `json:"intertrialIntervalMs"`
}

// Machine is the trial state machine.
type Machine struct {
	protocol models.Protocol
	ceiling  float64
	timeout  float64

	clock    Clock
	rng      Randomizer
	seq      *Sequencer
	balance  *Balance
	selector *Selector
	recorder *Recorder
	log      *zap.Logger

	state SessionState
	err   error
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(m *Machine) {
		if log != nil {
			m.log = log
		}
	}
}

// NewMachine validates p and starts the first intertrial wait at the clock's
// current time.
func NewMachine(p models.Protocol, clock Clock, rng Randomizer, recorder *Recorder, opts ...Option) (*Machine, error) {
	p = p.WithDefaults()
	if err := Validate(p); err != nil {
		return nil, err
	}
	if clock == nil || rng == nil || recorder == nil {
		return nil, fmt.Errorf("new machine: clock, randomizer and recorder are required")
	}

	balance := NewBalance(p.SemiPredictableTimes)
	m := &Machine{
		protocol: p,
		ceiling:  RenderNormalizationCeilingMs(p),
		timeout:  p.TimeoutMs(),
		clock:    clock,
		rng:      rng,
		balance:  balance,
		seq:      NewSequencer(p.Conditions, p.TrialsPerCondition, balance),
		selector: NewSelector(p, rng),
		recorder: recorder,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(zap.String("participantID", recorder.ParticipantID()))

	m.syncSequence()
	m.beginWait(clock.NowMs())
	return m, nil
}

// Protocol returns the protocol the machine runs with, defaults applied.
func (m *Machine) Protocol() models.Protocol { return m.protocol }

// TimeoutMs is the elapsed time after which an unanswered trial ends.
func (m *Machine) TimeoutMs() float64 { return m.timeout }

// State returns a copy of the session state.
func (m *Machine) State() SessionState {
	s := m.state
	if s.Trial != nil {
		t := *s.Trial
		s.Trial = &t
	}
	return s
}

// Balance returns the semi-predictable usage counts of the current block.
func (m *Machine) Balance() map[float64]int { return m.balance.Counts() }

// Results returns the recorded trials so far.
func (m *Machine) Results() []models.TrialResult { return m.recorder.Results() }

// Err returns the fatal error that halted the machine, if any.
func (m *Machine) Err() error { return m.err }

// Done reports whether the session has completed.
func (m *Machine) Done() bool { return m.state.Phase == Complete }

// Frame returns what should be drawn right now without changing state.
func (m *Machine) Frame() Frame {
	return m.frameAt(m.clock.NowMs())
}

// Tick advances time-driven transitions and returns the frame to draw. After
// Complete, or after a fatal error, it changes nothing.
func (m *Machine) Tick() (Frame, error) {
	now := m.clock.NowMs()
	if m.err != nil {
		return m.frameAt(now), m.err
	}

	switch m.state.Phase {
	case IntertrialWait:
		if now >= m.state.WaitUntilMs {
			if err := m.beginTrial(now); err != nil {
				m.err = err
				m.log.Error("Trial progression halted", zap.Error(err))
				return m.frameAt(now), err
			}
		}
	case ActiveTrial:
		if !m.state.StimulusLatched && now-m.state.TrialStartMs >= m.state.Trial.TargetTimeMs {
			m.state.StimulusLatched = true
		}
		if now > m.state.TrialDeadlineMs {
			m.endTrial(nil, now)
		}
	}

	return m.frameAt(now), nil
}

// HandleKey treats key as a response if it is the configured response key.
// Every other key is ignored.
func (m *Machine) HandleKey(key string) bool {
	if key != m.protocol.ResponseKey {
		return false
	}
	return m.OnResponse()
}

// HandleKeyAt is HandleKey for a press the client timed itself. elapsedMs is
// the press time relative to the trial start, on the Frame.ElapsedMs
// timeline.
func (m *Machine) HandleKeyAt(key string, elapsedMs float64) bool {
	if key != m.protocol.ResponseKey {
		return false
	}
	return m.OnResponseAt(m.state.TrialStartMs + elapsedMs)
}

// OnResponse ends the active trial with a reaction time measured from the
// scheduled onset to now. Responses before the onset are negative. It is a
// no-op outside an active trial and reports whether the response was taken.
func (m *Machine) OnResponse() bool {
	return m.OnResponseAt(m.clock.NowMs())
}

// OnResponseAt is OnResponse for a response that happened at instantMs on
// the machine clock. An instant before the trial start or after now cannot
// belong to the active trial, so the current time is used instead.
func (m *Machine) OnResponseAt(instantMs float64) bool {
	if m.err != nil || m.state.Phase != ActiveTrial {
		return false
	}
	now := m.clock.NowMs()
	if math.IsNaN(instantMs) || instantMs < m.state.TrialStartMs || instantMs > now {
		instantMs = now
	}
	rt := (instantMs - m.state.TrialStartMs) - m.state.Trial.TargetTimeMs
	m.endTrial(&rt, now)
	return true
}

func (m *Machine) frameAt(now float64) Frame {
	elapsed := 0.0
	if m.state.Phase == ActiveTrial {
		elapsed = now - m.state.TrialStartMs
	}
	return Decide(m.state, elapsed, m.protocol, m.ceiling)
}

func (m *Machine) beginWait(now float64) {
	iti := m.protocol.IntertrialIntervalRange
	low, high := iti[0], iti[0]
	if len(iti) > 1 {
		high = iti[1]
	}
	m.state.Phase = IntertrialWait
	m.state.WaitStartMs = now
	m.state.IntertrialIntervalMs = m.rng.Uniform(low, high)
	m.state.WaitUntilMs = now + m.state.IntertrialIntervalMs
}

func (m *Machine) beginTrial(now float64) error {
	cond := m.seq.Current()
	target, err := m.selector.SelectTargetTime(cond, m.balance)
	if err != nil {
		return fmt.Errorf("begin trial %d of %s: %w", m.seq.TrialsCompleted()+1, cond, err)
	}

	m.state.Phase = ActiveTrial
	m.state.Trial = &models.TrialSpec{Condition: cond, TargetTimeMs: target}
	m.state.TrialStartMs = now
	m.state.TrialDeadlineMs = now + m.timeout
	m.state.StimulusLatched = false

	m.log.Debug("Trial started",
		zap.Stringer("condition", cond),
		zap.Int("trial", m.seq.TrialsCompleted()+1),
		zap.Float64("targetTimeMs", target),
	)
	return nil
}

func (m *Machine) endTrial(rt *float64, now float64) {
	spec := *m.state.Trial
	result := models.TrialResult{
		Condition:      spec.Condition,
		TargetTimeMs:   spec.TargetTimeMs,
		ReactionTimeMs: rt,
	}

	m.state.Trial = nil
	m.state.StimulusLatched = false
	m.recorder.Record(result)

	fields := []zap.Field{
		zap.Stringer("condition", spec.Condition),
		zap.Float64("targetTimeMs", spec.TargetTimeMs),
	}
	if rt != nil {
		fields = append(fields, zap.Float64("reactionTimeMs", *rt))
	} else {
		fields = append(fields, zap.Bool("noResponse", true))
	}
	m.log.Info("Trial ended", fields...)

	complete := m.seq.CompleteTrial()
	m.syncSequence()
	if complete {
		m.state.Phase = Complete
		m.log.Info("Session complete", zap.Int("trials", m.recorder.Len()))
		return
	}
	if m.state.TrialsCompletedInCondition == 0 {
		m.log.Info("Condition started", zap.Stringer("condition", m.state.Condition))
	}
	m.beginWait(now)
}

func (m *Machine) syncSequence() {
	m.state.ConditionIndex = m.seq.Index()
	m.state.TrialsCompletedInCondition = m.seq.TrialsCompleted()
	if !m.seq.Done() {
		m.state.Condition = m.seq.Current()
	}
}
