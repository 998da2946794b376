package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const referenceProtocol = `
predictable_time: 4900
semi_predictable_times: [1700, 4900]
unpredictable_range: [1700, 4900]
trials_per_condition: 20
intertrial_interval_range: [2100]
`

func writeProtocol(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "protocol.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestSimulate_ReferenceProtocol(t *testing.T) {
	results, err := simulate(simOptions{
		protocolPath: writeProtocol(t, referenceProtocol),
		seed:         7,
		missRate:     0.5,
		rtMean:       250,
		rtSD:         50,
		tickMs:       1000.0 / 60,
	})
	require.NoError(t, err)
	require.Len(t, results, 60)

	semiCounts := map[float64]int{}
	misses := 0
	for i, r := range results {
		assert.Equal(t, models.AllConditions[i/20], r.Condition)
		if r.Condition == models.SemiPredictable {
			semiCounts[r.TargetTimeMs]++
		}
		if r.Condition == models.Predictable {
			assert.Equal(t, 4900.0, r.TargetTimeMs)
		}
		if r.Condition == models.Unpredictable {
			assert.GreaterOrEqual(t, r.TargetTimeMs, 1700.0)
			assert.Less(t, r.TargetTimeMs, 4900.0)
		}
		if !r.Responded() {
			misses++
		}
	}
	assert.Equal(t, map[float64]int{1700: 10, 4900: 10}, semiCounts)
	assert.Greater(t, misses, 0)
	assert.Less(t, misses, 60)
}

func TestSimulate_PressTimesAreNotQuantizedToTicks(t *testing.T) {
	results, err := simulate(simOptions{
		protocolPath: writeProtocol(t, referenceProtocol),
		seed:         11,
		rtMean:       250,
		tickMs:       1000.0 / 60,
	})
	require.NoError(t, err)
	require.Len(t, results, 60)
	for i, r := range results {
		require.True(t, r.Responded(), "trial %d", i)
		assert.InDelta(t, 250.0, *r.ReactionTimeMs, 1e-6, "trial %d", i)
	}
}

func TestSimulate_Deterministic(t *testing.T) {
	opts := simOptions{
		protocolPath:  writeProtocol(t, referenceProtocol),
		participantID: "SIM001",
		seed:          42,
		missRate:      0.2,
		rtMean:        200,
		rtSD:          80,
		tickMs:        10,
	}
	a, err := simulate(opts)
	require.NoError(t, err)
	b, err := simulate(opts)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSimulateToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.csv")
	var summary bytes.Buffer
	err := simulateToFile(simOptions{
		protocolPath:  writeProtocol(t, referenceProtocol),
		participantID: "SIM001",
		seed:          3,
		rtMean:        250,
		rtSD:          40,
		tickMs:        1000.0 / 60,
	}, out, &summary)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 61)
	assert.Equal(t, "Condition,TargetTime(ms),ReactionTime(ms)", lines[0])
	assert.Contains(t, summary.String(), "semi-predictable")
}

func TestSimulate_RejectsBadInput(t *testing.T) {
	_, err := simulate(simOptions{protocolPath: writeProtocol(t, referenceProtocol), tickMs: 0})
	assert.Error(t, err)

	_, err = simulate(simOptions{protocolPath: writeProtocol(t, referenceProtocol), tickMs: 10, missRate: 2})
	assert.Error(t, err)

	uneven := strings.Replace(referenceProtocol, "trials_per_condition: 20", "trials_per_condition: 21", 1)
	_, err = simulate(simOptions{protocolPath: writeProtocol(t, uneven), tickMs: 10})
	assert.Error(t, err)
}

func TestRunValidate(t *testing.T) {
	p, err := runValidate(writeProtocol(t, referenceProtocol))
	require.NoError(t, err)
	assert.Equal(t, models.AllConditions, p.Conditions)
	assert.Equal(t, " ", p.ResponseKey)

	_, err = runValidate(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
