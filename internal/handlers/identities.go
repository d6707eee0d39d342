package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/node-reward-monitor/internal/models"
	"github.com/kyvra-tech/node-reward-monitor/internal/services"
)

type IdentityHandler struct {
	monitors []*services.IdentityMonitor
	logger   *logrus.Logger
}

func NewIdentityHandler(monitors []*services.IdentityMonitor, logger *logrus.Logger) *IdentityHandler {
	return &IdentityHandler{
		monitors: monitors,
		logger:   logger,
	}
}

func (h *IdentityHandler) ListIdentities(c *gin.Context) {
	statuses := make([]models.IdentityStatus, 0, len(h.monitors))
	for _, monitor := range h.monitors {
		statuses = append(statuses, monitor.Status())
	}

	c.JSON(http.StatusOK, gin.H{
		"identities": statuses,
		"total":      len(statuses),
		"timestamp":  time.Now().UTC(),
	})
}

func (h *IdentityHandler) GetIdentity(c *gin.Context) {
	name := c.Param("name")
	for _, monitor := range h.monitors {
		if monitor.Name() == name {
			c.JSON(http.StatusOK, monitor.Status())
			return
		}
	}

	appErr := models.NewIdentityNotFoundError(name)
	h.logger.WithField("identity", name).Debug("Unknown identity requested")
	c.JSON(appErr.StatusCode, appErr)
}
