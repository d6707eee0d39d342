package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/node-reward-monitor/internal/services"
	"github.com/kyvra-tech/node-reward-monitor/pkg/metrics"
)

const statusReportJob = "Status Report Request"

type CronScheduler struct {
	cron           *cron.Cron
	monitors       []*services.IdentityMonitor
	logger         *logrus.Logger
	metrics        *metrics.Metrics
	jobTimeout     time.Duration
	activeJobs     sync.WaitGroup
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

func NewCronScheduler(
	monitors []*services.IdentityMonitor,
	logger *logrus.Logger,
	m *metrics.Metrics,
) *CronScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &CronScheduler{
		cron:           cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		monitors:       monitors,
		logger:         logger,
		metrics:        m,
		jobTimeout:     time.Minute,
		shutdownCtx:    ctx,
		shutdownCancel: cancel,
	}
}

// Start schedules the status-report request. An empty expression leaves the scheduler idle.
func (s *CronScheduler) Start(statusReportSpec string) error {
	if statusReportSpec != "" {
		_, err := s.cron.AddFunc(statusReportSpec, s.createJobWrapper(statusReportJob, s.requestStatusReports))
		if err != nil {
			return fmt.Errorf("schedule status report %q: %w", statusReportSpec, err)
		}
	}

	s.cron.Start()
	s.logger.WithField("jobs", len(s.cron.Entries())).Info("Cron scheduler started successfully")
	return nil
}

func (s *CronScheduler) requestStatusReports(ctx context.Context) error {
	for _, monitor := range s.monitors {
		if err := ctx.Err(); err != nil {
			return err
		}
		monitor.RequestStatusReport()
	}
	s.logger.WithField("identities", len(s.monitors)).Info("Status report requested for next poll")
	return nil
}

// createJobWrapper wraps a job with context, timeout, logging, and panic recovery
func (s *CronScheduler) createJobWrapper(jobName string, jobFunc func(context.Context) error) func() {
	return func() {
		s.activeJobs.Add(1)
		defer s.activeJobs.Done()

		ctx, cancel := context.WithTimeout(s.shutdownCtx, s.jobTimeout)
		defer cancel()

		startTime := time.Now()

		s.logger.WithFields(logrus.Fields{
			"job":       jobName,
			"timestamp": startTime.UTC(),
		}).Debug("Starting scheduled job")

		defer func() {
			if r := recover(); r != nil {
				s.metrics.RecordSchedulerJob(jobName, false)
				s.logger.WithFields(logrus.Fields{
					"job":   jobName,
					"panic": r,
				}).Error("Job panicked")
			}
		}()

		err := jobFunc(ctx)
		duration := time.Since(startTime)
		s.metrics.RecordSchedulerJob(jobName, err == nil)

		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"job":      jobName,
				"duration": duration.String(),
				"error":    err.Error(),
			}).Error("Job failed")
			return
		}
		s.logger.WithFields(logrus.Fields{
			"job":      jobName,
			"duration": duration.String(),
		}).Debug("Job completed successfully")
	}
}

func (s *CronScheduler) Stop() {
	s.logger.Info("Stopping cron scheduler...")

	ctx := s.cron.Stop()
	s.shutdownCancel()

	done := make(chan struct{})
	go func() {
		s.activeJobs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("All jobs completed, cron scheduler stopped")
	case <-ctx.Done():
		s.logger.Info("Cron scheduler stopped")
	case <-time.After(10 * time.Second):
		s.logger.Warn("Timeout waiting for jobs to complete, forcing shutdown")
	}
}

// GetSchedulerStatus returns the current status of the scheduler
func (s *CronScheduler) GetSchedulerStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"name":     statusReportJob,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
