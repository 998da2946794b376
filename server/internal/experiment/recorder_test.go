package experiment

import (
	"testing"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_AppendsForwardsAndObserves(t *testing.T) {
	type forwarded struct {
		pid    string
		result models.TrialResult
	}
	var sent []forwarded
	var observed int

	rec := NewRecorder("AB12CD",
		WithForwarder(ForwarderFunc(func(pid string, r models.TrialResult) {
			sent = append(sent, forwarded{pid, r})
		})),
		WithObserver(func(models.TrialResult) { observed++ }),
	)

	rt := 250.0
	first := models.TrialResult{Condition: models.Predictable, TargetTimeMs: 4900, ReactionTimeMs: &rt}
	second := models.TrialResult{Condition: models.Unpredictable, TargetTimeMs: 2000}
	rec.Record(first)
	rec.Record(second)

	require.Equal(t, 2, rec.Len())
	assert.Equal(t, []models.TrialResult{first, second}, rec.Results())
	assert.Equal(t, []forwarded{{"AB12CD", first}, {"AB12CD", second}}, sent)
	assert.Equal(t, 2, observed)
}

func TestRecorder_ResultsIsACopy(t *testing.T) {
	rec := NewRecorder("X")
	rec.Record(models.TrialResult{Condition: models.Predictable, TargetTimeMs: 4900})

	out := rec.Results()
	out[0].TargetTimeMs = 1
	assert.Equal(t, 4900.0, rec.Results()[0].TargetTimeMs)
}
