package experiment

import (
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
	"go.uber.org/zap"
)

// Forwarder ships a recorded trial to telemetry. Forward must return without
// waiting for delivery, and its outcome never reaches the Recorder.
type Forwarder interface {
	Forward(participantID string, result models.TrialResult)
}

// ForwarderFunc adapts a function to Forwarder.
type ForwarderFunc func(participantID string, result models.TrialResult)

func (f ForwarderFunc) Forward(participantID string, result models.TrialResult) {
	f(participantID, result)
}

// Recorder holds the append-only result log of a session.
type Recorder struct {
	participantID string
	results       []models.TrialResult
	forwarder     Forwarder
	observers     []func(models.TrialResult)
	log           *zap.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithForwarder sends every recorded trial to f.
func WithForwarder(f Forwarder) RecorderOption {
	return func(r *Recorder) { r.forwarder = f }
}

// WithObserver calls fn after each trial is appended.
func WithObserver(fn func(models.TrialResult)) RecorderOption {
	return func(r *Recorder) { r.observers = append(r.observers, fn) }
}

// WithRecorderLogger sets the logger.
func WithRecorderLogger(log *zap.Logger) RecorderOption {
	return func(r *Recorder) {
		if log != nil {
			r.log = log
		}
	}
}

func NewRecorder(participantID string, opts ...RecorderOption) *Recorder {
	r := &Recorder{participantID: participantID, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ParticipantID identifies whose trials these are.
func (r *Recorder) ParticipantID() string { return r.participantID }

// Record appends result and forwards it.
func (r *Recorder) Record(result models.TrialResult) {
	r.results = append(r.results, result)

	if r.forwarder != nil {
		r.forwarder.Forward(r.participantID, result)
	}
	for _, fn := range r.observers {
		fn(result)
	}
	r.log.Debug("Trial recorded", zap.Int("index", len(r.results)-1))
}

// Results returns a copy of the log in chronological order.
func (r *Recorder) Results() []models.TrialResult {
	out := make([]models.TrialResult, len(r.results))
	copy(out, r.results)
	return out
}

// Len is the number of recorded trials.
func (r *Recorder) Len() int { return len(r.results) }
