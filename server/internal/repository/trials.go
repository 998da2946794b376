// server/internal/repository/trials.go
package repository

import (
	"context"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/database"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
)

// SaveTrial stores one ingested telemetry payload.
func SaveTrial(ctx context.Context, p models.Payload) (*models.TrialRecord, error) {
	record := &models.TrialRecord{
		ParticipantID:  p.ParticipantID,
		Condition:      p.Condition,
		TargetTimeMs:   p.TargetTime,
		ReactionTimeMs: p.ReactionTime,
	}
	if err := database.DB.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// GetTrialsForParticipant returns a participant's trials in arrival order.
func GetTrialsForParticipant(ctx context.Context, participantID string) ([]models.TrialResult, error) {
	var records []models.TrialRecord
	err := database.DB.WithContext(ctx).
		Where("participant_id = ?", participantID).
		Order("created_at ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	results := make([]models.TrialResult, 0, len(records))
	for _, r := range records {
		result, err := r.Result()
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}
