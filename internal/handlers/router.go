package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/node-reward-monitor/internal/middleware"
	"github.com/kyvra-tech/node-reward-monitor/pkg/metrics"
)

// NewRouter wires the status API and the Prometheus endpoint
func NewRouter(health *HealthHandler, identities *IdentityHandler, scheduler *SchedulerHandler, logger *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.StructuredLogger(logger))

	api := router.Group("/api/v1")
	{
		api.GET("/health", health.Health)
		api.GET("/identities", identities.ListIdentities)
		api.GET("/identities/:name", identities.GetIdentity)
		api.GET("/scheduler", scheduler.GetStatus)
	}

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return router
}
