package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kyvra-tech/node-reward-monitor/internal/config"
	"github.com/kyvra-tech/node-reward-monitor/internal/handlers"
	"github.com/kyvra-tech/node-reward-monitor/internal/scheduler"
	"github.com/kyvra-tech/node-reward-monitor/internal/services"
	"github.com/kyvra-tech/node-reward-monitor/pkg/logger"
	"github.com/kyvra-tech/node-reward-monitor/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.Logger.Level, cfg.Logger.Format)
	appLogger.WithField("config", cfg.String()).Info("Configuration loaded")

	appMetrics := metrics.NewMetrics()
	proxyURL := cfg.Proxy.Effective()

	// Initialize services
	apiClient := services.NewNodeAPIClient(cfg.API.URL, cfg.API.RequestTimeout, proxyURL, appLogger)
	notifier, err := services.NewWebhookNotifier(cfg.Webhook.URL, cfg.API.RequestTimeout, proxyURL, cfg.Webhook.RatePerMinute, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to create webhook notifier")
	}

	decoder := services.NewSnapshotDecoder()
	differ := services.NewDiffEngine(cfg.Monitor.ReportRemovedNodes)
	reports := services.NewReportBuilder(cfg.Monitor.TimeOffset, cfg.Monitor.KeyPrefixLength)

	monitors := make([]*services.IdentityMonitor, 0, len(cfg.Identities))
	for _, identity := range cfg.Identities {
		opts := services.MonitorOptions{AlwaysNotify: cfg.Monitor.AlwaysNotify}
		if cfg.MultiIdentity {
			opts.Label = identity.Name
			opts.JitterMin = cfg.Monitor.JitterMin
			opts.JitterMax = cfg.Monitor.JitterMax
		}
		monitors = append(monitors, services.NewIdentityMonitor(
			identity, opts, decoder, differ, reports, notifier, appLogger, appMetrics,
		))
	}

	poller := scheduler.NewPoller(monitors, apiClient, scheduler.PollerConfig{
		Interval:      cfg.Schedule.PollInterval,
		RetryDelay:    cfg.Schedule.RetryDelay,
		MaxConcurrent: cfg.Schedule.MaxConcurrent,
	}, appLogger, appMetrics)

	// Initialize scheduler
	cronScheduler := scheduler.NewCronScheduler(monitors, appLogger, appMetrics)
	if err := cronScheduler.Start(cfg.Schedule.StatusReportCron); err != nil {
		appLogger.WithError(err).Fatal("Failed to start cron scheduler")
	}
	defer cronScheduler.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var server *http.Server
	if cfg.Server.Enabled {
		if cfg.Logger.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		router := handlers.NewRouter(
			handlers.NewHealthHandler(poller, cfg.Schedule.PollInterval, appLogger, version),
			handlers.NewIdentityHandler(monitors, appLogger),
			handlers.NewSchedulerHandler(cronScheduler),
			appLogger,
		)

		serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		server = &http.Server{
			Addr:    serverAddr,
			Handler: router,
		}
		go func() {
			appLogger.WithField("addr", serverAddr).Info("Starting status server")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				appLogger.WithError(err).Error("Status server failed")
				stop()
			}
		}()
	}

	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.WithError(err).Error("Poller exited")
	}

	appLogger.Info("Shutting down...")

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			appLogger.WithError(err).Error("Server forced to shutdown")
		}
	}

	appLogger.Info("Monitor exited")
}
