package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests
	return logger
}

func hookedLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func compress(t *testing.T, payload []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(payload, nil)
}

type apiNode struct {
	ID          interface{}   `json:"_id"`
	PubKey      string        `json:"pubKey"`
	IsConnected bool          `json:"isConnected"`
	TotalReward float64       `json:"totalReward"`
	TodayReward float64       `json:"todayReward"`
	Sessions    []interface{} `json:"sessions"`
}

func sessions(n int) []interface{} {
	out := make([]interface{}, n)
	for i := range out {
		out[i] = map[string]string{"id": "s"}
	}
	return out
}

func encodeNodes(t *testing.T, nodes ...apiNode) []byte {
	t.Helper()
	if nodes == nil {
		nodes = []apiNode{}
	}
	payload, err := json.Marshal(nodes)
	require.NoError(t, err)
	return compress(t, payload)
}

// stubFetcher replays queued responses in order.
type stubFetcher struct {
	mu          sync.Mutex
	responses   []stubResponse
	credentials []string
}

type stubResponse struct {
	body []byte
	err  error
}

func (f *stubFetcher) push(body []byte, err error) *stubFetcher {
	f.responses = append(f.responses, stubResponse{body: body, err: err})
	return f
}

func (f *stubFetcher) FetchNodes(_ context.Context, credential string) (*FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credentials = append(f.credentials, credential)
	if len(f.responses) == 0 {
		panic("stubFetcher: no response queued")
	}
	next := f.responses[0]
	f.responses = f.responses[1:]
	if next.err != nil {
		return nil, next.err
	}
	return &FetchResult{Body: next.body, StatusCode: 200, ContentEncoding: "zstd"}, nil
}

type stubNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *stubNotifier) Send(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return n.err
}

func (n *stubNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}
