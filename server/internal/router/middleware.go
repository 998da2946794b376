package router

import (
	"net/http"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/handlers"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// ParticipantLoader copies the participant ID from the cookie session into
// the request context, so a returning browser keeps its ID.
func ParticipantLoader() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if pid, ok := session.Get(handlers.ParticipantSessionKey).(string); ok && pid != "" {
			c.Set(handlers.ParticipantContextKey, pid)
		}
		c.Next()
	}
}

// SessionRequired loads the runner named by the :id path parameter, or
// answers 404.
func SessionRequired(registry *services.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		runner, ok := registry.Get(c.Param("id"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		c.Set(handlers.RunnerContextKey, runner)
		c.Next()
	}
}
