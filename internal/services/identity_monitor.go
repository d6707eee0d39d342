package services

import (
	"context"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/node-reward-monitor/internal/models"
	"github.com/kyvra-tech/node-reward-monitor/pkg/errors"
	"github.com/kyvra-tech/node-reward-monitor/pkg/metrics"
)

// PollStage is how far a poll got
type PollStage string

const (
	StageJitter  PollStage = "jitter"
	StageFetch   PollStage = "fetch"
	StageDecode  PollStage = "decode"
	StageCompare PollStage = "compare"
	StageNotify  PollStage = "notify"
	StageDone    PollStage = "done"
)

// PollResult describes one poll of one identity
type PollResult struct {
	Identity  string
	Stage     PollStage
	FirstRun  bool
	Nodes     int
	Changes   int
	Report    models.ReportKind
	Delivered bool
	Err       error
	NotifyErr error
	Duration  time.Duration
}

// OK reports whether a snapshot was fetched, decoded and committed.
func (r *PollResult) OK() bool {
	return r.Err == nil
}

// MonitorOptions tunes an IdentityMonitor
type MonitorOptions struct {
	// Label prefixes every report; empty in single-identity mode.
	Label        string
	AlwaysNotify bool
	JitterMin    time.Duration
	JitterMax    time.Duration
}

// IdentityMonitor owns the poll/diff/notify state of one credential. Poll must not be
// called concurrently on the same monitor; the Poller runs at most one per cycle.
type IdentityMonitor struct {
	identity models.Identity
	opts     MonitorOptions
	decoder  *SnapshotDecoder
	differ   *DiffEngine
	reports  *ReportBuilder
	notifier Notifier
	logger   *logrus.Entry
	metrics  *metrics.Metrics
	sleep    func(ctx context.Context, d time.Duration) error

	// last is only read and written by Poll.
	last    models.Snapshot
	hasLast bool

	statusRequested atomic.Bool

	mu     sync.RWMutex
	status models.IdentityStatus
}

func NewIdentityMonitor(
	identity models.Identity,
	opts MonitorOptions,
	decoder *SnapshotDecoder,
	differ *DiffEngine,
	reports *ReportBuilder,
	notifier Notifier,
	logger *logrus.Logger,
	m *metrics.Metrics,
) *IdentityMonitor {
	if opts.JitterMax < opts.JitterMin {
		opts.JitterMax = opts.JitterMin
	}
	return &IdentityMonitor{
		identity: identity,
		opts:     opts,
		decoder:  decoder,
		differ:   differ,
		reports:  reports,
		notifier: notifier,
		logger:   logger.WithField("identity", identity.Name),
		metrics:  m,
		sleep:    Sleep,
		status:   models.IdentityStatus{Name: identity.Name},
	}
}

// Name returns the identity name.
func (m *IdentityMonitor) Name() string {
	return m.identity.Name
}

// RequestStatusReport makes the next successful poll send a full status report.
func (m *IdentityMonitor) RequestStatusReport() {
	m.statusRequested.Store(true)
}

// Status returns a copy of the monitor's externally visible state.
func (m *IdentityMonitor) Status() models.IdentityStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// LastSnapshot returns a copy of the stored snapshot and whether one exists. Only call it
// while no poll is running.
func (m *IdentityMonitor) LastSnapshot() (models.Snapshot, bool) {
	return m.last.Clone(), m.hasLast
}

// Poll runs one fetch → decode → diff → notify pass. Every failure is logged and
// returned in the result; nothing propagates to the caller as a panic or error.
func (m *IdentityMonitor) Poll(ctx context.Context, fetcher NodeFetcher) (result *PollResult) {
	start := time.Now()
	result = &PollResult{Identity: m.identity.Name, Stage: StageJitter}
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("poll panicked at %s: %v", result.Stage, r)
			m.logger.WithFields(logrus.Fields{
				"stage": result.Stage,
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("Poll panicked, skipping identity for this cycle")
		}
		result.Duration = time.Since(start)
		m.finish(result)
	}()

	if err := m.waitJitter(ctx); err != nil {
		result.Err = err
		m.logger.WithError(err).Warn("Poll cancelled during jitter wait")
		return result
	}

	snapshot, err := m.fetchSnapshot(ctx, fetcher, result)
	if err != nil {
		result.Err = err
		m.logger.WithError(err).WithFields(logrus.Fields{
			"stage": result.Stage,
			"kind":  errors.Kind(err),
		}).Error("Poll failed, skipping identity for this cycle")
		return result
	}

	result.Stage = StageCompare
	result.Nodes = len(snapshot)
	report := m.decide(snapshot, result)

	// Commit before dispatch: a failed notification never rolls the snapshot back.
	m.last = snapshot
	m.hasLast = true

	if report == nil {
		result.Stage = StageDone
		m.logger.WithField("nodes", result.Nodes).Debug("No changes, nothing to report")
		return result
	}

	result.Stage = StageNotify
	result.Report = report.Kind
	if err := m.notifier.Send(ctx, report.Text); err != nil {
		result.NotifyErr = err
		m.logger.WithError(err).WithField("report", report.Kind).Error("Failed to deliver report")
	} else {
		result.Delivered = true
		m.logger.WithFields(logrus.Fields{
			"report":  report.Kind,
			"changes": result.Changes,
		}).Info("Report delivered")
	}
	m.metrics.RecordNotification(string(report.Kind), result.Delivered)

	result.Stage = StageDone
	return result
}

func (m *IdentityMonitor) fetchSnapshot(ctx context.Context, fetcher NodeFetcher, result *PollResult) (models.Snapshot, error) {
	result.Stage = StageFetch
	resp, err := fetcher.FetchNodes(ctx, m.identity.Credential)
	if err != nil {
		return nil, err
	}

	m.logger.WithFields(logrus.Fields{
		"status":           resp.StatusCode,
		"content_type":     resp.ContentType,
		"content_encoding": resp.ContentEncoding,
		"server":           resp.Server,
		"bytes":            len(resp.Body),
	}).Debug("Node API responded")

	result.Stage = StageDecode
	return m.decoder.Decode(resp.Body)
}

// decide picks at most one report for this poll.
func (m *IdentityMonitor) decide(snapshot models.Snapshot, result *PollResult) *models.Report {
	forced := m.statusRequested.Swap(false)

	if !m.hasLast {
		result.FirstRun = true
		m.logger.WithField("nodes", len(snapshot)).Info("First snapshot, sending status report")
		return m.reports.BuildStatusReport(m.opts.Label, snapshot)
	}

	changes := m.differ.Diff(m.last, snapshot)
	result.Changes = len(changes)
	for _, change := range changes {
		m.metrics.RecordChange(m.identity.Name, change.Kind.String())
	}

	if forced {
		return m.reports.BuildStatusReport(m.opts.Label, snapshot)
	}
	if report, ok := m.reports.BuildChangeReport(m.opts.Label, changes); ok {
		return report
	}
	if m.opts.AlwaysNotify {
		return m.reports.BuildStatusReport(m.opts.Label, snapshot)
	}
	return nil
}

func (m *IdentityMonitor) waitJitter(ctx context.Context) error {
	if m.opts.JitterMax <= 0 {
		return nil
	}
	delay := m.opts.JitterMin
	if span := m.opts.JitterMax - m.opts.JitterMin; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span) + 1))
	}
	m.logger.WithField("delay", delay.String()).Debug("Waiting before fetch")
	return m.sleep(ctx, delay)
}

func (m *IdentityMonitor) finish(result *PollResult) {
	outcome := "success"
	if result.Err != nil {
		outcome = errors.Kind(result.Err)
	}
	m.metrics.RecordPoll(m.identity.Name, outcome, result.Duration)

	var totals models.SnapshotTotals
	if result.OK() {
		totals = m.last.Totals()
		m.metrics.UpdateSnapshot(m.identity.Name, totals.Nodes, totals.Online, totals.TotalReward, totals.TodayReward)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.Polls++
	m.status.LastPollAt = time.Now()
	if result.Err != nil {
		m.status.Failures++
		m.status.LastError = result.Err.Error()
		return
	}
	m.status.LastSuccessAt = m.status.LastPollAt
	m.status.LastError = ""
	m.status.Totals = totals
	if result.Report != models.ReportNone {
		m.status.LastReport = result.Report
		if result.Delivered {
			m.status.Reports++
		}
	}
	if result.NotifyErr != nil {
		m.status.LastError = result.NotifyErr.Error()
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
