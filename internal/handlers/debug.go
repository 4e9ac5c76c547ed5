package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/events"
	"messenger-service/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints: an audit pipeline check
// and a broker subscription inspector.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, broker *events.Broker, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/broker", func(c *gin.Context) {
		counts := gin.H{
			"messages": broker.SubscriberCount(events.TopicMessages),
		}
		if user := c.Query("user"); user != "" {
			if userID, err := strconv.Atoi(user); err == nil {
				counts["presence"] = broker.SubscriberCount(events.TopicPresence(userID))
				counts["requests"] = broker.SubscriberCount(events.TopicRequests(userID))
			}
		}
		c.JSON(http.StatusOK, counts)
	})
}
