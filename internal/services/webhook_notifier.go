package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/kyvra-tech/node-reward-monitor/pkg/errors"
)

// Notifier delivers a rendered report
type Notifier interface {
	Send(ctx context.Context, text string) error
}

type webhookText struct {
	Content string `json:"content"`
}

type webhookMessage struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

// WebhookNotifier posts text messages to a chat robot webhook
type WebhookNotifier struct {
	webhookURL string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

// NewWebhookNotifier creates a notifier. perMinute <= 0 disables rate limiting; an empty
// proxyURL sends directly.
func NewWebhookNotifier(webhookURL string, timeout time.Duration, proxyURL string, perMinute int, logger *logrus.Logger) (*WebhookNotifier, error) {
	httpClient, err := newHTTPClient(timeout, proxyURL)
	if err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if perMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}

	return &WebhookNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
	}, nil
}

// Send posts text; anything but HTTP 200 is ErrNotification.
func (n *WebhookNotifier) Send(ctx context.Context, text string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return errors.Mark(errors.ErrNotification, err)
	}

	payload, err := json.Marshal(webhookMessage{
		MsgType: "text",
		Text:    webhookText{Content: text},
	})
	if err != nil {
		return errors.Mark(errors.ErrNotification, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return errors.Mark(errors.ErrNotification, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return errors.Mark(errors.ErrNotification, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return errors.Wrapf(errors.ErrNotification, "webhook returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	n.logger.WithField("bytes", len(payload)).Debug("Report delivered to webhook")
	return nil
}
