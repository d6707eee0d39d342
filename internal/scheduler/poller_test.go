package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyvra-tech/node-reward-monitor/internal/models"
	"github.com/kyvra-tech/node-reward-monitor/internal/services"
	"github.com/kyvra-tech/node-reward-monitor/pkg/errors"
	"github.com/kyvra-tech/node-reward-monitor/pkg/metrics"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// credentialFetcher answers per credential: a body, an error, or a panic.
type credentialFetcher struct {
	bodies map[string][]byte
	errs   map[string]error
	panics map[string]bool

	mu    sync.Mutex
	calls map[string]int
}

func (f *credentialFetcher) FetchNodes(_ context.Context, credential string) (*services.FetchResult, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[credential]++
	f.mu.Unlock()

	if f.panics[credential] {
		panic("fetcher exploded")
	}
	if err := f.errs[credential]; err != nil {
		return nil, err
	}
	return &services.FetchResult{Body: f.bodies[credential], StatusCode: 200}, nil
}

type sessionStub struct {
	fetcher services.NodeFetcher
	err     error
}

func (s *sessionStub) NewSession() (services.NodeFetcher, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.fetcher, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Send(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return nil
}

func nodesBody(t *testing.T, ids ...string) []byte {
	t.Helper()
	nodes := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, map[string]interface{}{
			"_id": id, "pubKey": "key-" + id, "isConnected": true,
			"totalReward": 1, "todayReward": 0, "sessions": []interface{}{},
		})
	}
	payload, err := json.Marshal(nodes)
	require.NoError(t, err)

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(payload, nil)
}

func newMonitors(notifier services.Notifier, names ...string) []*services.IdentityMonitor {
	logger := quietLogger()
	m := metrics.NewMetrics()
	decoder := services.NewSnapshotDecoder()
	differ := services.NewDiffEngine(true)
	reports := services.NewReportBuilder(8*time.Hour, 20)

	monitors := make([]*services.IdentityMonitor, 0, len(names))
	for _, name := range names {
		monitors = append(monitors, services.NewIdentityMonitor(
			models.Identity{Name: name, Credential: "token-" + name},
			services.MonitorOptions{Label: name},
			decoder, differ, reports, notifier, logger, m,
		))
	}
	return monitors
}

func TestPoller_RunCycleIsolatesIdentities(t *testing.T) {
	notifier := &recordingNotifier{}
	monitors := newMonitors(notifier, "good", "broken", "panicky", "other")
	fetcher := &credentialFetcher{
		bodies: map[string][]byte{
			"token-good":  nodesBody(t, "1", "2"),
			"token-other": nodesBody(t, "3"),
		},
		errs:   map[string]error{"token-broken": errors.Wrap(errors.ErrTransport, "node api returned 500")},
		panics: map[string]bool{"token-panicky": true},
	}

	poller := NewPoller(monitors, &sessionStub{fetcher: fetcher}, PollerConfig{
		Interval:   time.Minute,
		RetryDelay: time.Second,
	}, quietLogger(), metrics.NewMetrics())

	require.NoError(t, poller.RunCycle(context.Background()))

	for _, name := range []string{"good", "broken", "panicky", "other"} {
		assert.Equal(t, 1, fetcher.calls["token-"+name], name)
	}

	good, ok := monitors[0].LastSnapshot()
	assert.True(t, ok)
	assert.Len(t, good, 2)
	_, ok = monitors[1].LastSnapshot()
	assert.False(t, ok)
	_, ok = monitors[2].LastSnapshot()
	assert.False(t, ok)
	other, ok := monitors[3].LastSnapshot()
	assert.True(t, ok)
	assert.Len(t, other, 1)

	assert.Len(t, notifier.messages, 2)
	assert.Equal(t, 1, monitors[1].Status().Failures)
	assert.Equal(t, 1, monitors[2].Status().Failures)

	_, cycles := poller.LastCycle()
	assert.Equal(t, 1, cycles)
}

func TestPoller_RunCycleWithConcurrencyLimit(t *testing.T) {
	notifier := &recordingNotifier{}
	names := make([]string, 0, 6)
	bodies := make(map[string][]byte)
	for i := 0; i < 6; i++ {
		name := fmt.Sprintf("id%d", i)
		names = append(names, name)
		bodies["token-"+name] = nodesBody(t, name)
	}
	fetcher := &credentialFetcher{bodies: bodies}

	poller := NewPoller(newMonitors(notifier, names...), &sessionStub{fetcher: fetcher}, PollerConfig{
		Interval:      time.Minute,
		RetryDelay:    time.Second,
		MaxConcurrent: 2,
	}, quietLogger(), metrics.NewMetrics())

	require.NoError(t, poller.RunCycle(context.Background()))
	assert.Len(t, notifier.messages, 6)
}

func TestPoller_SessionFailure(t *testing.T) {
	poller := NewPoller(newMonitors(&recordingNotifier{}, "solo"), &sessionStub{err: errors.ErrInvalidConfig}, PollerConfig{
		Interval:   time.Minute,
		RetryDelay: time.Second,
	}, quietLogger(), metrics.NewMetrics())

	err := poller.RunCycle(context.Background())
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestPoller_RunUsesRetryDelayAfterFailure(t *testing.T) {
	sessions := &sessionStub{err: errors.ErrInvalidConfig}
	poller := NewPoller(newMonitors(&recordingNotifier{}, "solo"), sessions, PollerConfig{
		Interval:   5 * time.Minute,
		RetryDelay: 5 * time.Second,
	}, quietLogger(), metrics.NewMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var delays []time.Duration
	poller.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		if len(delays) == 1 {
			// Recover before the next cycle.
			sessions.err = nil
			sessions.fetcher = &credentialFetcher{bodies: map[string][]byte{"token-solo": nodesBody(t, "1")}}
			return nil
		}
		cancel()
		return ctx.Err()
	}

	err := poller.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Minute}, delays)
}
