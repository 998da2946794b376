package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProtocol(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "protocol.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
predictable_time: 4500
semi_predictable_times: [1700, 3100, 4500]
unpredictable_range: [1700, 4900]
trials_per_condition: 12
intertrial_interval_range: [1500, 2500]
conditions: [semi-predictable, unpredictable]
`), 0o644))

	p, err := LoadProtocol(path)
	require.NoError(t, err)

	assert.Equal(t, 4500.0, p.PredictableTime)
	assert.Equal(t, []float64{1700, 3100, 4500}, p.SemiPredictableTimes)
	assert.Equal(t, 4900.0, p.UnpredictableHigh())
	assert.Equal(t, 1700.0, p.UnpredictableLow())
	assert.Equal(t, 12, p.TrialsPerCondition)
	assert.Equal(t, []Condition{SemiPredictable, Unpredictable}, p.Conditions)
	assert.Equal(t, DefaultResponseKey, p.ResponseKey)
	require.NotNil(t, p.TimeoutGraceMs)
	assert.Equal(t, DefaultTimeoutGraceMs, *p.TimeoutGraceMs)
}

func TestLoadProtocol_DefaultsConditions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.yaml")
	require.NoError(t, os.WriteFile(path, []byte("predictable_time: 4900\n"), 0o644))

	p, err := LoadProtocol(path)
	require.NoError(t, err)
	assert.Equal(t, AllConditions, p.Conditions)
}

func TestLoadProtocol_ZeroGraceIsKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.yaml")
	require.NoError(t, os.WriteFile(path, []byte("unpredictable_range: [1700, 4900]\ntimeout_grace_ms: 0\n"), 0o644))

	p, err := LoadProtocol(path)
	require.NoError(t, err)
	require.NotNil(t, p.TimeoutGraceMs)
	assert.Zero(t, p.TimeoutGrace())
	assert.Equal(t, 4900.0, p.TimeoutMs())

	var unset Protocol
	unset.UnpredictableRange = []float64{1700, 4900}
	assert.Equal(t, 5400.0, unset.TimeoutMs())
	assert.Equal(t, 5400.0, unset.WithDefaults().TimeoutMs())
}

func TestLoadProtocol_Errors(t *testing.T) {
	_, err := LoadProtocol(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("conditions: [sometimes]\n"), 0o644))
	_, err = LoadProtocol(path)
	require.Error(t, err)
}

func TestCondition_Text(t *testing.T) {
	for _, c := range AllConditions {
		parsed, err := ParseCondition(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}

	c, err := ParseCondition("  Semi-Predictable ")
	require.NoError(t, err)
	assert.Equal(t, SemiPredictable, c)

	_, err = Condition(7).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "condition(7)", Condition(7).String())
}

func TestPayload_JSON(t *testing.T) {
	rt := 312.0
	data, err := json.Marshal(NewPayload("QX7P2A", TrialResult{Condition: Unpredictable, TargetTimeMs: 2500, ReactionTimeMs: &rt}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"participantID":"QX7P2A","condition":"unpredictable","targetTime":2500,"reactionTime":312}`, string(data))

	data, err = json.Marshal(NewPayload("QX7P2A", TrialResult{Condition: Predictable, TargetTimeMs: 4900}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"participantID":"QX7P2A","condition":"predictable","targetTime":4900,"reactionTime":null}`, string(data))
}

func TestTrialRecord_Result(t *testing.T) {
	rec := TrialRecord{Condition: "semi-predictable", TargetTimeMs: 1700}
	r, err := rec.Result()
	require.NoError(t, err)
	assert.Equal(t, SemiPredictable, r.Condition)
	assert.False(t, r.Responded())

	_, err = TrialRecord{Condition: "nope"}.Result()
	assert.Error(t, err)
}
