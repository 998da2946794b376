package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/experiment"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/render"
	"go.uber.org/zap"
)

// DefaultTickRate is roughly one display refresh at 60 Hz.
const DefaultTickRate = 16667 * time.Microsecond

var ErrRunnerStopped = errors.New("session runner stopped")

// RunnerConfig carries what a SessionRunner needs besides its protocol.
type RunnerConfig struct {
	TickRate  time.Duration
	Forwarder experiment.Forwarder
	Observers []func(models.TrialResult)
	// OnComplete runs once on the runner goroutine when the session completes.
	// It must not call back into the runner.
	OnComplete func(r *SessionRunner, results []models.TrialResult)
	// Clock and Rand default to the monotonic clock and a time-seeded source.
	Clock experiment.Clock
	Rand  experiment.Randomizer
	Log   *zap.Logger
}

// SessionRunner owns one Machine and drives it from a single goroutine.
// Ticks, key events and reads are all serialized through that goroutine, so
// a key event is never handled in the middle of a tick.
type SessionRunner struct {
	id            string
	participantID string
	startedAt     time.Time

	machine *experiment.Machine
	painter *render.Painter

	tickRate   time.Duration
	onComplete func(r *SessionRunner, results []models.TrialResult)
	log        *zap.Logger

	cmds     chan func()
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	finished bool
}

func NewSessionRunner(id, participantID string, p models.Protocol, cfg RunnerConfig) (*SessionRunner, error) {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("session_id", id), zap.String("participant_id", participantID))

	clock := cfg.Clock
	if clock == nil {
		clock = experiment.NewMonotonicClock()
	}
	rng := cfg.Rand
	if rng == nil {
		rng = experiment.NewRandomSource(uint64(time.Now().UnixNano()))
	}
	tickRate := cfg.TickRate
	if tickRate <= 0 {
		tickRate = DefaultTickRate
	}

	recOpts := []experiment.RecorderOption{experiment.WithRecorderLogger(log)}
	if cfg.Forwarder != nil {
		recOpts = append(recOpts, experiment.WithForwarder(cfg.Forwarder))
	}
	for _, fn := range cfg.Observers {
		recOpts = append(recOpts, experiment.WithObserver(fn))
	}
	recorder := experiment.NewRecorder(participantID, recOpts...)

	machine, err := experiment.NewMachine(p, clock, rng, recorder, experiment.WithLogger(log))
	if err != nil {
		return nil, err
	}

	return &SessionRunner{
		id:            id,
		participantID: participantID,
		startedAt:     time.Now(),
		machine:       machine,
		painter:       render.NewPainter(),
		tickRate:      tickRate,
		onComplete:    cfg.OnComplete,
		log:           log,
		cmds:          make(chan func()),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}, nil
}

func (r *SessionRunner) ID() string { return r.id }

func (r *SessionRunner) ParticipantID() string { return r.participantID }

func (r *SessionRunner) StartedAt() time.Time { return r.startedAt }

// Done is closed when the runner goroutine has exited.
func (r *SessionRunner) Done() <-chan struct{} { return r.done }

// Start runs the loop in a goroutine until ctx is cancelled or Stop is called.
func (r *SessionRunner) Start(ctx context.Context) {
	r.log.Info("Starting session runner", zap.Duration("tick_rate", r.tickRate))
	go r.loop(ctx)
}

// Stop ends the loop. It is safe to call more than once.
func (r *SessionRunner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *SessionRunner) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.tickRate)
	defer ticker.Stop()
	tick := ticker.C

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case fn := <-r.cmds:
			fn()
		case <-tick:
			if _, err := r.machine.Tick(); err != nil {
				r.log.Error("Session halted", zap.Error(err))
				ticker.Stop()
				tick = nil
				continue
			}
		}

		if tick != nil && r.machine.Done() {
			ticker.Stop()
			tick = nil
		}
		r.checkComplete()
	}
}

func (r *SessionRunner) checkComplete() {
	if r.finished || !r.machine.Done() {
		return
	}
	r.finished = true
	r.log.Info("Session finished", zap.Duration("duration", time.Since(r.startedAt)))
	if r.onComplete != nil {
		r.onComplete(r, r.machine.Results())
	}
}

// exec runs fn on the runner goroutine and waits for it.
func (r *SessionRunner) exec(fn func()) error {
	finished := make(chan struct{})
	select {
	case r.cmds <- func() { fn(); close(finished) }:
	case <-r.done:
		return ErrRunnerStopped
	}
	<-finished
	return nil
}

// HandleKey delivers a key press and reports whether it was taken as a
// response.
func (r *SessionRunner) HandleKey(key string) (bool, error) {
	var honored bool
	err := r.exec(func() { honored = r.machine.HandleKey(key) })
	return honored, err
}

// HandleKeyAt delivers a key press the client timed itself, elapsedMs after
// the trial start.
func (r *SessionRunner) HandleKeyAt(key string, elapsedMs float64) (bool, error) {
	var honored bool
	err := r.exec(func() { honored = r.machine.HandleKeyAt(key, elapsedMs) })
	return honored, err
}

// Snapshot is a consistent view of the session at one instant.
type Snapshot struct {
	SessionID     string                  `json:"sessionId"`
	ParticipantID string                  `json:"participantId"`
	State         experiment.SessionState `json:"state"`
	Balance       map[string]int          `json:"balance"`
	TrialsDone    int                     `json:"trialsDone"`
	Complete      bool                    `json:"complete"`
	Error         string                  `json:"error,omitempty"`
}

func (r *SessionRunner) Snapshot() (Snapshot, error) {
	var s Snapshot
	err := r.exec(func() {
		s = Snapshot{
			SessionID:     r.id,
			ParticipantID: r.participantID,
			State:         r.machine.State(),
			Balance:       balanceByLabel(r.machine.Balance()),
			TrialsDone:    len(r.machine.Results()),
			Complete:      r.machine.Done(),
		}
		if err := r.machine.Err(); err != nil {
			s.Error = err.Error()
		}
	})
	return s, err
}

func balanceByLabel(counts map[float64]int) map[string]int {
	out := make(map[string]int, len(counts))
	for t, n := range counts {
		out[strconv.FormatFloat(t, 'f', -1, 64)] = n
	}
	return out
}

// Draw paints the current frame. After the end screen has been drawn once,
// later calls return no ops.
func (r *SessionRunner) Draw(width, height float64) (experiment.Frame, *render.CommandCanvas, error) {
	var (
		frame  experiment.Frame
		canvas = render.NewCommandCanvas()
	)
	err := r.exec(func() {
		frame = r.machine.Frame()
		r.painter.Draw(canvas, frame, width, height)
	})
	return frame, canvas, err
}

// Results returns the recorded trials and whether the session is complete.
func (r *SessionRunner) Results() ([]models.TrialResult, bool, error) {
	var (
		results  []models.TrialResult
		complete bool
	)
	err := r.exec(func() {
		results = r.machine.Results()
		complete = r.machine.Done()
	})
	return results, complete, err
}
