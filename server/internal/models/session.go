package models

import (
	"time"

	"github.com/lib/pq"
)

// SessionRecord stores one experiment run and the protocol it ran with.
type SessionRecord struct {
	ID                      string `gorm:"primaryKey"`
	ParticipantID           string `gorm:"index"`
	PredictableTime         float64
	SemiPredictableTimes    pq.Float64Array `gorm:"type:double precision[]"`
	UnpredictableRange      pq.Float64Array `gorm:"type:double precision[]"`
	IntertrialIntervalRange pq.Float64Array `gorm:"type:double precision[]"`
	Conditions              pq.StringArray  `gorm:"type:text[]"`
	TrialsPerCondition      int
	IsComplete              bool
	TrialCount              int
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// NewSessionRecord snapshots the protocol a session starts with.
func NewSessionRecord(id, participantID string, p Protocol) SessionRecord {
	conditions := make(pq.StringArray, len(p.Conditions))
	for i, c := range p.Conditions {
		conditions[i] = c.String()
	}
	return SessionRecord{
		ID:                      id,
		ParticipantID:           participantID,
		PredictableTime:         p.PredictableTime,
		SemiPredictableTimes:    pq.Float64Array(p.SemiPredictableTimes),
		UnpredictableRange:      pq.Float64Array(p.UnpredictableRange),
		IntertrialIntervalRange: pq.Float64Array(p.IntertrialIntervalRange),
		Conditions:              conditions,
		TrialsPerCondition:      p.TrialsPerCondition,
	}
}
