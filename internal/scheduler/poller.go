package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kyvra-tech/node-reward-monitor/internal/services"
	"github.com/kyvra-tech/node-reward-monitor/pkg/metrics"
)

// SessionProvider opens the transport session shared by one cycle
type SessionProvider interface {
	NewSession() (services.NodeFetcher, error)
}

// PollerConfig holds the cycle timing
type PollerConfig struct {
	Interval      time.Duration
	RetryDelay    time.Duration
	MaxConcurrent int
}

// Poller runs every identity monitor once per cycle and sleeps between cycles
type Poller struct {
	monitors []*services.IdentityMonitor
	sessions SessionProvider
	cfg      PollerConfig
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	sleep    func(ctx context.Context, d time.Duration) error

	mu          sync.RWMutex
	lastCycleAt time.Time
	cycles      int
}

func NewPoller(
	monitors []*services.IdentityMonitor,
	sessions SessionProvider,
	cfg PollerConfig,
	logger *logrus.Logger,
	m *metrics.Metrics,
) *Poller {
	return &Poller{
		monitors: monitors,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		sleep:    services.Sleep,
	}
}

// Monitors returns the monitors driven by this poller.
func (p *Poller) Monitors() []*services.IdentityMonitor {
	return p.monitors
}

// LastCycle returns when the last cycle finished and how many have run.
func (p *Poller) LastCycle() (time.Time, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastCycleAt, p.cycles
}

// Run polls until ctx is cancelled. A cycle-level failure shortens the next wait to the
// retry delay.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.WithFields(logrus.Fields{
		"identities": len(p.monitors),
		"interval":   p.cfg.Interval.String(),
	}).Info("Poller started")

	for {
		delay := p.cfg.Interval
		if err := p.RunCycle(ctx); err != nil {
			delay = p.cfg.RetryDelay
			p.logger.WithError(err).WithField("retry_in", delay.String()).Error("Polling cycle failed")
		}

		if err := p.sleep(ctx, delay); err != nil {
			p.logger.Info("Poller stopped")
			return ctx.Err()
		}
	}
}

// RunCycle polls every identity once. Identity failures are contained in their results;
// only session setup failures and panics outside a monitor are returned.
func (p *Poller) RunCycle(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
			p.logger.WithField("stack", string(debug.Stack())).Error("Polling cycle panicked")
		}
		duration := time.Since(start)
		p.metrics.RecordCycle(err == nil, duration)

		p.mu.Lock()
		p.lastCycleAt = time.Now()
		p.cycles++
		p.mu.Unlock()
	}()

	session, err := p.sessions.NewSession()
	if err != nil {
		return fmt.Errorf("open api session: %w", err)
	}

	results := make([]*services.PollResult, len(p.monitors))
	if len(p.monitors) == 1 {
		results[0] = p.pollOne(ctx, p.monitors[0], session)
	} else {
		// No shared context: one identity's failure must not cancel its siblings.
		var g errgroup.Group
		if p.cfg.MaxConcurrent > 0 {
			g.SetLimit(p.cfg.MaxConcurrent)
		}
		for i, monitor := range p.monitors {
			i, monitor := i, monitor
			g.Go(func() error {
				results[i] = p.pollOne(ctx, monitor, session)
				return nil
			})
		}
		_ = g.Wait()
	}

	failed := 0
	for _, result := range results {
		if !result.OK() {
			failed++
		}
	}
	p.logger.WithFields(logrus.Fields{
		"identities": len(results),
		"failed":     failed,
		"duration":   time.Since(start).String(),
	}).Info("Polling cycle completed")

	return nil
}

// pollOne converts a monitor panic into a failed result.
func (p *Poller) pollOne(ctx context.Context, monitor *services.IdentityMonitor, session services.NodeFetcher) (result *services.PollResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(logrus.Fields{
				"identity": monitor.Name(),
				"panic":    r,
				"stack":    string(debug.Stack()),
			}).Error("Identity monitor panicked")
			result = &services.PollResult{
				Identity: monitor.Name(),
				Err:      fmt.Errorf("monitor panicked: %v", r),
			}
		}
	}()
	return monitor.Poll(ctx, session)
}
