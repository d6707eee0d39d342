package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type SchedulerStatusProvider interface {
	GetSchedulerStatus() map[string]interface{}
}

type SchedulerHandler struct {
	scheduler SchedulerStatusProvider
}

func NewSchedulerHandler(scheduler SchedulerStatusProvider) *SchedulerHandler {
	return &SchedulerHandler{scheduler: scheduler}
}

func (h *SchedulerHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.scheduler.GetSchedulerStatus())
}
