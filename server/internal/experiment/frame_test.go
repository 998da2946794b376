package experiment

import (
	"testing"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	p := models.DefaultProtocol()
	ceiling := RenderNormalizationCeilingMs(p)
	assert.Equal(t, 4900.0, ceiling)

	active := func(cond models.Condition, target float64, latched bool) SessionState {
		return SessionState{
			Phase:           ActiveTrial,
			Condition:       cond,
			Trial:           &models.TrialSpec{Condition: cond, TargetTimeMs: target},
			StimulusLatched: latched,
		}
	}

	t.Run("wait draws nothing", func(t *testing.T) {
		f := Decide(SessionState{Phase: IntertrialWait}, 0, p, ceiling)
		assert.Equal(t, IntertrialWait, f.Phase)
		assert.Zero(t, f.BarFraction)
		assert.Empty(t, f.Markers)
	})

	t.Run("complete", func(t *testing.T) {
		f := Decide(SessionState{Phase: Complete}, 0, p, ceiling)
		assert.Equal(t, Complete, f.Phase)
	})

	t.Run("predictable grows against shared ceiling", func(t *testing.T) {
		f := Decide(active(models.Predictable, 4900, false), 2450, p, ceiling)
		assert.InDelta(t, 0.5, f.BarFraction, 1e-9)
		assert.Equal(t, []float64{1}, f.Markers)
		assert.Equal(t, Latent, f.Stimulus)
		assert.False(t, f.FullBar)
	})

	t.Run("semi-predictable markers", func(t *testing.T) {
		f := Decide(active(models.SemiPredictable, 1700, false), 1700, p, ceiling)
		assert.InDeltaSlice(t, []float64{1700.0 / 4900, 1}, f.Markers, 1e-9)
		assert.Equal(t, Triggered, f.Stimulus)
	})

	t.Run("bar runs past ceiling during grace", func(t *testing.T) {
		f := Decide(active(models.Predictable, 4900, true), 5390, p, ceiling)
		assert.Greater(t, f.BarFraction, 1.0)
	})

	t.Run("unpredictable is a full bar", func(t *testing.T) {
		f := Decide(active(models.Unpredictable, 3000, false), 100, p, ceiling)
		assert.True(t, f.FullBar)
		assert.Equal(t, 1.0, f.BarFraction)
		assert.Empty(t, f.Markers)
		assert.Equal(t, Latent, f.Stimulus)

		f = Decide(active(models.Unpredictable, 3000, true), 100, p, ceiling)
		assert.Equal(t, Triggered, f.Stimulus)
	})

	t.Run("does not mutate state", func(t *testing.T) {
		st := active(models.Unpredictable, 3000, false)
		Decide(st, 4000, p, ceiling)
		assert.False(t, st.StimulusLatched)
	})
}
