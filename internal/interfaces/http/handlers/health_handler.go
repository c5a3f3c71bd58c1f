// Package handlers contains the HTTP handlers sessiond exposes on its own
// behalf. Application routes are registered by the embedding service.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soleron/sessiond/internal/infrastructure/persistence/postgres"
	"github.com/soleron/sessiond/internal/infrastructure/persistence/redis"
)

// HealthHandler reports readiness of the shared store and the durable store.
// Redis readiness is advisory: a false answer degrades the health report but
// individual operations still decide for themselves via Acquire.
type HealthHandler struct {
	redisConn *redis.ConnectionManager
	db        *postgres.DBConnection
}

// NewHealthHandler creates the health handler. db may be nil when sessiond
// runs without a durable store (state-store-only deployments).
func NewHealthHandler(redisConn *redis.ConnectionManager, db *postgres.DBConnection) *HealthHandler {
	return &HealthHandler{redisConn: redisConn, db: db}
}

// Live is the liveness probe.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready is the readiness probe; it degrades to 503 when a dependency is
// unreachable.
func (h *HealthHandler) Ready(c *gin.Context) {
	status := http.StatusOK
	checks := gin.H{}

	if h.redisConn.IsReady() {
		checks["redis"] = "ok"
	} else {
		checks["redis"] = "unavailable"
		status = http.StatusServiceUnavailable
	}

	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			checks["postgres"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			checks["postgres"] = "ok"
		}
	}

	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
}
