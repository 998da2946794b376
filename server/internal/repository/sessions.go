package repository

import (
	"context"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/database"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
)

// CreateSession stores the protocol snapshot a session starts with.
func CreateSession(ctx context.Context, id, participantID string, p models.Protocol) error {
	record := models.NewSessionRecord(id, participantID, p)
	return database.DB.WithContext(ctx).Create(&record).Error
}

// CompleteSession marks a session finished with its final trial count.
func CompleteSession(ctx context.Context, id string, trialCount int) error {
	return database.DB.WithContext(ctx).
		Model(&models.SessionRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_complete": true, "trial_count": trialCount}).Error
}

// GetSession loads one session.
func GetSession(ctx context.Context, id string) (*models.SessionRecord, error) {
	var s models.SessionRecord
	if err := database.DB.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
