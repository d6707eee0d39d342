package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CycleTracker reports polling progress
type CycleTracker interface {
	LastCycle() (time.Time, int)
}

type HealthHandler struct {
	poller   CycleTracker
	interval time.Duration
	logger   *logrus.Logger
	version  string
}

func NewHealthHandler(poller CycleTracker, interval time.Duration, logger *logrus.Logger, version string) *HealthHandler {
	return &HealthHandler{
		poller:   poller,
		interval: interval,
		logger:   logger,
		version:  version,
	}
}

// Health reports unhealthy once no cycle has finished for three intervals
func (h *HealthHandler) Health(c *gin.Context) {
	lastCycle, cycles := h.poller.LastCycle()

	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
		"cycles":    cycles,
	}
	if cycles > 0 {
		body["last_cycle_at"] = lastCycle.UTC()
	}

	if cycles > 0 && h.interval > 0 && time.Since(lastCycle) > 3*h.interval {
		h.logger.WithField("last_cycle_at", lastCycle).Warn("Poller looks stalled")
		body["status"] = "unhealthy"
		body["error"] = "poller stalled"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}

	c.JSON(http.StatusOK, body)
}
