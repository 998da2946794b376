package models

import "time"

// TrialSpec describes a trial about to run.
type TrialSpec struct {
	Condition    Condition `json:"condition"`
	TargetTimeMs float64   `json:"targetTimeMs"`
}

// TrialResult is the immutable outcome of one trial. A nil ReactionTimeMs
// means the participant did not respond before the timeout.
type TrialResult struct {
	Condition      Condition `json:"condition"`
	TargetTimeMs   float64   `json:"targetTimeMs"`
	ReactionTimeMs *float64  `json:"reactionTimeMs"`
}

// Responded reports whether the trial ended with a response.
func (r TrialResult) Responded() bool {
	return r.ReactionTimeMs != nil
}

// Payload is the per-trial telemetry record.
type Payload struct {
	ParticipantID string   `json:"participantID" validate:"required"`
	Condition     string   `json:"condition" validate:"required,oneof=predictable semi-predictable unpredictable"`
	TargetTime    float64  `json:"targetTime" validate:"gt=0"`
	ReactionTime  *float64 `json:"reactionTime"`
}

// NewPayload builds the telemetry record for a result.
func NewPayload(participantID string, r TrialResult) Payload {
	return Payload{
		ParticipantID: participantID,
		Condition:     r.Condition.String(),
		TargetTime:    r.TargetTimeMs,
		ReactionTime:  r.ReactionTimeMs,
	}
}

// TrialRecord is a telemetry payload as stored by the ingest endpoint.
type TrialRecord struct {
	ID             uint   `gorm:"primaryKey"`
	ParticipantID  string `gorm:"index"`
	Condition      string
	TargetTimeMs   float64
	ReactionTimeMs *float64
	CreatedAt      time.Time
}

// Result converts a stored record back into a TrialResult.
func (t TrialRecord) Result() (TrialResult, error) {
	cond, err := ParseCondition(t.Condition)
	if err != nil {
		return TrialResult{}, err
	}
	return TrialResult{Condition: cond, TargetTimeMs: t.TargetTimeMs, ReactionTimeMs: t.ReactionTimeMs}, nil
}
