package experiment

import (
	"bytes"
	"testing"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestWriteCSV(t *testing.T) {
	results := []models.TrialResult{
		{Condition: models.Predictable, TargetTimeMs: 4900, ReactionTimeMs: ptr(212.4)},
		{Condition: models.SemiPredictable, TargetTimeMs: 1700, ReactionTimeMs: ptr(-100)},
		{Condition: models.Unpredictable, TargetTimeMs: 3123.5},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, results))

	want := "Condition,TargetTime(ms),ReactionTime(ms)\n" +
		"predictable,4900,212\n" +
		"semi-predictable,1700,-100\n" +
		"unpredictable,3123.5,No response\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "Condition,TargetTime(ms),ReactionTime(ms)\n", buf.String())
}

func TestWriteCSV_RoundsHalfAwayFromZero(t *testing.T) {
	cases := map[float64]string{
		2.5:    "3",
		-0.5:   "-1",
		-2.5:   "-3",
		180.49: "180",
		-0.4:   "-0",
	}
	for rt, want := range cases {
		row := csvRow(models.TrialResult{Condition: models.Predictable, TargetTimeMs: 4900, ReactionTimeMs: ptr(rt)})
		assert.Equal(t, want, row[2], "rt %g", rt)
	}
}
