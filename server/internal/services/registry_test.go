package services

import (
	"testing"
	"time"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunner(t *testing.T, id string) *SessionRunner {
	t.Helper()
	r, err := NewSessionRunner(id, "AB12CD", fastProtocol(), RunnerConfig{TickRate: time.Millisecond})
	require.NoError(t, err)
	return r
}

func TestRegistry_AddGetRemove(t *testing.T) {
	m := metrics.New()
	reg := NewRegistry(time.Hour, m, nil)

	r := newRunner(t, "a")
	require.NoError(t, reg.Add(r))
	require.Error(t, reg.Add(r))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))

	got, ok := reg.Get("a")
	require.True(t, ok)
	assert.Same(t, r, got)

	assert.True(t, reg.Remove("a"))
	assert.False(t, reg.Remove("a"))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))

	select {
	case <-r.stop:
	default:
		t.Fatal("removed runner was not stopped")
	}
}

func TestRegistry_ExpiryStopsRunner(t *testing.T) {
	reg := NewRegistry(20*time.Millisecond, nil, nil)

	r := newRunner(t, "b")
	require.NoError(t, reg.Add(r))

	time.Sleep(40 * time.Millisecond)
	reg.cache.DeleteExpired()

	_, ok := reg.Get("b")
	assert.False(t, ok)
	select {
	case <-r.stop:
	default:
		t.Fatal("expired runner was not stopped")
	}
}

func TestRegistry_Close(t *testing.T) {
	reg := NewRegistry(time.Hour, nil, nil)
	require.NoError(t, reg.Add(newRunner(t, "a")))
	require.NoError(t, reg.Add(newRunner(t, "b")))
	assert.Equal(t, 2, reg.Len())

	reg.Close()
	assert.Equal(t, 0, reg.Len())
}
