package experiment

import (
	"fmt"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
)

// Stimulus is the visual state of the bar during a trial.
type Stimulus int

const (
	Latent Stimulus = iota
	Triggered
)

func (s Stimulus) String() string {
	if s == Triggered {
		return "triggered"
	}
	return "latent"
}

func (s Stimulus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Frame is what should be on screen for one tick.
type Frame struct {
	Phase     Phase            `json:"phase"`
	Condition models.Condition `json:"condition"`
	Stimulus  Stimulus         `json:"stimulus"`
	// FullBar is set for the unpredictable condition, where the bar never
	// grows and only changes color.
	FullBar bool `json:"fullBar"`
	// BarFraction is elapsed time over the normalization ceiling. It exceeds
	// 1 during the grace period before a timeout.
	BarFraction float64 `json:"barFraction"`
	// Markers are onset positions normalized against the same ceiling.
	Markers   []float64 `json:"markers,omitempty"`
	ElapsedMs float64   `json:"elapsedMs"`
}

// RenderNormalizationCeilingMs is the elapsed time that maps to a full bar.
// Every condition uses the upper bound of the unpredictable range, so a given
// time lands at the same screen position in all three.
func RenderNormalizationCeilingMs(p models.Protocol) float64 {
	return p.UnpredictableHigh()
}

// Decide computes the frame for state at elapsed ms into the current trial.
// It does not touch state.
func Decide(state SessionState, elapsed float64, p models.Protocol, ceilingMs float64) Frame {
	frame := Frame{Phase: state.Phase, Condition: state.Condition}
	if state.Phase != ActiveTrial || state.Trial == nil {
		return frame
	}

	frame.ElapsedMs = elapsed
	if state.StimulusLatched || elapsed >= state.Trial.TargetTimeMs {
		frame.Stimulus = Triggered
	}

	switch state.Trial.Condition {
	case models.Unpredictable:
		frame.FullBar = true
		frame.BarFraction = 1
	case models.Predictable:
		frame.BarFraction = elapsed / ceilingMs
		frame.Markers = []float64{p.PredictableTime / ceilingMs}
	case models.SemiPredictable:
		frame.BarFraction = elapsed / ceilingMs
		frame.Markers = make([]float64, len(p.SemiPredictableTimes))
		for i, t := range p.SemiPredictableTimes {
			frame.Markers[i] = t / ceilingMs
		}
	}
	return frame
}

// Phase is where the machine is in its cycle.
type Phase int

const (
	IntertrialWait Phase = iota
	ActiveTrial
	Complete
)

func (p Phase) String() string {
	switch p {
	case IntertrialWait:
		return "intertrial-wait"
	case ActiveTrial:
		return "active-trial"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }
