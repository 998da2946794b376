package repository

import (
	"context"
	"os"
	"testing"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/config"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/database"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// These tests need a Postgres instance; point RTEXP_TEST_DB_HOST at one.
func setupDB(t *testing.T) {
	t.Helper()
	host := os.Getenv("RTEXP_TEST_DB_HOST")
	if host == "" {
		t.Skip("RTEXP_TEST_DB_HOST not set")
	}
	conf := config.DatabaseConfig{
		Enabled:  true,
		Host:     host,
		Port:     envOr("RTEXP_TEST_DB_PORT", "5432"),
		User:     envOr("RTEXP_TEST_DB_USER", "user"),
		Password: envOr("RTEXP_TEST_DB_PASSWORD", "password"),
		DBName:   envOr("RTEXP_TEST_DB_NAME", "rtexp-test"),
		SSLMode:  "disable",
	}
	require.NoError(t, database.Init(conf, zaptest.NewLogger(t)))
	t.Cleanup(func() {
		_ = database.Close()
		database.DB = nil
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestSessionLifecycle(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	id := uuid.NewString()

	require.NoError(t, CreateSession(ctx, id, "AB12CD", models.DefaultProtocol()))
	require.NoError(t, CompleteSession(ctx, id, 60))

	s, err := GetSession(ctx, id)
	require.NoError(t, err)
	assert.True(t, s.IsComplete)
	assert.Equal(t, 60, s.TrialCount)
	assert.Equal(t, []string{"predictable", "semi-predictable", "unpredictable"}, []string(s.Conditions))
}

func TestTrialsRoundTripInOrder(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	pid := "P-" + uuid.NewString()[:8]
	rt := -35.0

	_, err := SaveTrial(ctx, models.Payload{ParticipantID: pid, Condition: "predictable", TargetTime: 4900, ReactionTime: &rt})
	require.NoError(t, err)
	_, err = SaveTrial(ctx, models.Payload{ParticipantID: pid, Condition: "unpredictable", TargetTime: 2345.5})
	require.NoError(t, err)

	results, err := GetTrialsForParticipant(ctx, pid)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, models.Predictable, results[0].Condition)
	assert.Equal(t, -35.0, *results[0].ReactionTimeMs)
	assert.Equal(t, models.Unpredictable, results[1].Condition)
	assert.False(t, results[1].Responded())
}
