// server/internal/handlers/telemetry.go
package handlers

import (
	"net/http"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/database"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/repository"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type TelemetryHandler struct {
	log      *zap.Logger
	validate *validator.Validate
}

func NewTelemetryHandler(log *zap.Logger) *TelemetryHandler {
	return &TelemetryHandler{log: log, validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Ingest accepts one per-trial payload. It stores it when the database is
// enabled and otherwise only logs it.
func (h *TelemetryHandler) Ingest(c *gin.Context) {
	var payload models.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.log.Warn("Failed to bind telemetry payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data"})
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if !utils.IsValidParticipantID(payload.ParticipantID) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid participant id"})
		return
	}

	if !database.Enabled() {
		h.log.Info("Telemetry received",
			zap.String("participant_id", payload.ParticipantID),
			zap.String("condition", payload.Condition),
			zap.Float64("target_time", payload.TargetTime),
			zap.Bool("responded", payload.ReactionTime != nil))
		c.JSON(http.StatusAccepted, gin.H{"stored": false})
		return
	}

	record, err := repository.SaveTrial(c.Request.Context(), payload)
	if err != nil {
		h.log.Error("Failed to save trial", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save trial"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"stored": true, "id": record.ID})
}

// ParticipantResults exports every stored trial of a participant as CSV.
func (h *TelemetryHandler) ParticipantResults(c *gin.Context) {
	pid := c.Param("pid")
	if !utils.IsValidParticipantID(pid) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid participant id"})
		return
	}
	if !database.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage is disabled"})
		return
	}

	results, err := repository.GetTrialsForParticipant(c.Request.Context(), pid)
	if err != nil {
		h.log.Error("Failed to load trials", zap.String("participant_id", pid), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load trials"})
		return
	}
	if len(results) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No trials for participant"})
		return
	}
	writeCSV(c, h.log, results)
}
