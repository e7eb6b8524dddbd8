package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/likecodingloveproblems/matchticketselling/pkg/database"
	"github.com/likecodingloveproblems/matchticketselling/pkg/redis"
)

// HealthHandler reports process and dependency health
type HealthHandler struct {
	db          *database.PostgresDB
	redisClient *redis.Client
	serviceName string
	version     string
}

// NewHealthHandler creates a new health handler. Nil dependencies are
// skipped, so the memory-store deployment stays healthy without them.
func NewHealthHandler(db *database.PostgresDB, redisClient *redis.Client, serviceName, version string) *HealthHandler {
	return &HealthHandler{
		db:          db,
		redisClient: redisClient,
		serviceName: serviceName,
		version:     version,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if h.db != nil {
		if err := h.db.HealthCheck(c.Request.Context()); err != nil {
			checks["postgres"] = "down"
			healthy = false
		} else {
			checks["postgres"] = "up"
		}
	}
	if h.redisClient != nil {
		if err := h.redisClient.HealthCheck(c.Request.Context()); err != nil {
			checks["redis"] = "down"
			healthy = false
		} else {
			checks["redis"] = "up"
		}
	}

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}

	c.JSON(status, gin.H{
		"status":  state,
		"service": h.serviceName,
		"version": h.version,
		"checks":  checks,
	})
}

// Ready handles GET /ready, a liveness-only probe
func (h *HealthHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
