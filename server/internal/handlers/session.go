package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/database"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/experiment"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/repository"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/services"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Context and cookie-session keys shared with the router middleware.
const (
	ParticipantContextKey = "participantID"
	RunnerContextKey      = "runner"

	ParticipantSessionKey = "participantID"
	SessionIDSessionKey   = "sessionID"
)

const (
	defaultFrameWidth  = 800.0
	defaultFrameHeight = 200.0
)

type SessionHandler struct {
	log       *zap.Logger
	registry  *services.Registry
	protocol  func() models.Protocol
	runnerCfg services.RunnerConfig
}

// NewSessionHandler serves experiment sessions. protocol is called for every
// new session, so a reloaded protocol only affects sessions started after it.
func NewSessionHandler(log *zap.Logger, registry *services.Registry, protocol func() models.Protocol, runnerCfg services.RunnerConfig) *SessionHandler {
	return &SessionHandler{log: log, registry: registry, protocol: protocol, runnerCfg: runnerCfg}
}

type createSessionRequest struct {
	ParticipantID string `json:"pid"`
}

// Create starts a new session for the participant named in the body, the pid
// query parameter or the cookie session, generating an ID if none is given.
func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	pid, err := h.resolveParticipant(c, req.ParticipantID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := uuid.NewString()
	protocol := h.protocol()

	cfg := h.runnerCfg
	cfg.Log = h.log
	cfg.OnComplete = h.completed

	runner, err := services.NewSessionRunner(id, pid, protocol, cfg)
	if err != nil {
		h.log.Error("Failed to create session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not start session"})
		return
	}

	if database.Enabled() {
		if err := repository.CreateSession(c.Request.Context(), id, pid, protocol); err != nil {
			h.log.Error("Failed to persist session", zap.String("session_id", id), zap.Error(err))
		}
	}

	if err := h.registry.Add(runner); err != nil {
		h.log.Error("Failed to register session", zap.String("session_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not start session"})
		return
	}
	// The runner outlives the request; the registry stops it.
	runner.Start(context.Background())

	session := sessions.Default(c)
	session.Set(ParticipantSessionKey, pid)
	session.Set(SessionIDSessionKey, id)
	if err := session.Save(); err != nil {
		h.log.Warn("Failed to save cookie session", zap.Error(err))
	}

	c.JSON(http.StatusCreated, gin.H{"sessionId": id, "participantId": pid})
}

var errInvalidParticipant = errors.New("invalid participant id")

func (h *SessionHandler) resolveParticipant(c *gin.Context, fromBody string) (string, error) {
	candidates := []string{fromBody, c.Query("pid")}
	if v, ok := c.Get(ParticipantContextKey); ok {
		if s, ok := v.(string); ok {
			candidates = append(candidates, s)
		}
	}
	for _, pid := range candidates {
		if pid == "" {
			continue
		}
		if !utils.IsValidParticipantID(pid) {
			return "", errInvalidParticipant
		}
		return pid, nil
	}
	return utils.GenerateParticipantID()
}

func (h *SessionHandler) completed(r *services.SessionRunner, results []models.TrialResult) {
	if !database.Enabled() {
		return
	}
	id, n := r.ID(), len(results)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := repository.CompleteSession(ctx, id, n); err != nil {
			h.log.Error("Failed to mark session complete", zap.String("session_id", id), zap.Error(err))
		}
	}()
}

type keyRequest struct {
	Key string `json:"key" binding:"required"`
	// ElapsedMs is the press time the client measured from trial start, on
	// the frame's elapsedMs timeline. Arrival time is used when it is absent.
	ElapsedMs *float64 `json:"elapsedMs"`
}

// Key delivers a key press to the session.
func (h *SessionHandler) Key(c *gin.Context) {
	runner := runnerFrom(c)

	var req keyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	var (
		honored bool
		err     error
	)
	if req.ElapsedMs != nil {
		honored, err = runner.HandleKeyAt(req.Key, *req.ElapsedMs)
	} else {
		honored, err = runner.HandleKey(req.Key)
	}
	if err != nil {
		h.runnerGone(c, err)
		return
	}
	h.registry.Touch(runner.ID())
	c.JSON(http.StatusOK, gin.H{"honored": honored})
}

// Frame returns the draw ops for the current instant.
func (h *SessionHandler) Frame(c *gin.Context) {
	runner := runnerFrom(c)

	width, err := floatQuery(c, "width", defaultFrameWidth)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid width"})
		return
	}
	height, err := floatQuery(c, "height", defaultFrameHeight)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid height"})
		return
	}

	frame, canvas, err := runner.Draw(width, height)
	if err != nil {
		h.runnerGone(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"frame": frame, "ops": canvas.Ops})
}

func (h *SessionHandler) State(c *gin.Context) {
	snapshot, err := runnerFrom(c).Snapshot()
	if err != nil {
		h.runnerGone(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// Results downloads the session CSV once the session is complete.
func (h *SessionHandler) Results(c *gin.Context) {
	results, complete, err := runnerFrom(c).Results()
	if err != nil {
		h.runnerGone(c, err)
		return
	}
	if !complete {
		c.JSON(http.StatusConflict, gin.H{"error": "Session is not complete"})
		return
	}
	writeCSV(c, h.log, results)
}

func (h *SessionHandler) Delete(c *gin.Context) {
	if !h.registry.Remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) runnerGone(c *gin.Context, err error) {
	if errors.Is(err, services.ErrRunnerStopped) {
		c.JSON(http.StatusGone, gin.H{"error": "Session has ended"})
		return
	}
	h.log.Error("Session request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
}

func runnerFrom(c *gin.Context) *services.SessionRunner {
	return c.MustGet(RunnerContextKey).(*services.SessionRunner)
}

func floatQuery(c *gin.Context, key string, fallback float64) (float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0, errors.New("must be a positive number")
	}
	return v, nil
}

func writeCSV(c *gin.Context, log *zap.Logger, results []models.TrialResult) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+experiment.ExportFilename+`"`)
	c.Status(http.StatusOK)
	if err := experiment.WriteCSV(c.Writer, results); err != nil {
		log.Error("Failed to write results CSV", zap.Error(err))
	}
}
