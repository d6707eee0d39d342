package services

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/node-reward-monitor/pkg/errors"
)

const (
	maxResponseBytes = 64 << 20
	maxErrorBodySize = 512
)

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36 Edg/130.0.0.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:123.0) Gecko/20100101 Firefox/123.0",
}

// FetchResult is a successful node API response
type FetchResult struct {
	Body            []byte
	StatusCode      int
	ContentType     string
	ContentEncoding string
	Server          string
}

// NodeFetcher retrieves the raw node list for one credential
type NodeFetcher interface {
	FetchNodes(ctx context.Context, credential string) (*FetchResult, error)
}

// NodeAPIClient builds per-cycle sessions against the node API
type NodeAPIClient struct {
	apiURL   string
	timeout  time.Duration
	proxyURL string
	logger   *logrus.Logger
	agents   []string
}

// NewNodeAPIClient creates a client; an empty proxyURL disables the proxy.
func NewNodeAPIClient(apiURL string, timeout time.Duration, proxyURL string, logger *logrus.Logger) *NodeAPIClient {
	return &NodeAPIClient{
		apiURL:   apiURL,
		timeout:  timeout,
		proxyURL: proxyURL,
		logger:   logger,
		agents:   defaultUserAgents,
	}
}

// NewSession returns a fetcher backed by one HTTP client, safe for concurrent use by
// all identities of a cycle.
func (c *NodeAPIClient) NewSession() (NodeFetcher, error) {
	if _, err := url.ParseRequestURI(c.apiURL); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "api url %q: %v", c.apiURL, err)
	}
	httpClient, err := newHTTPClient(c.timeout, c.proxyURL)
	if err != nil {
		return nil, err
	}
	return &apiSession{client: c, http: httpClient}, nil
}

func (c *NodeAPIClient) userAgent() string {
	return c.agents[rand.Intn(len(c.agents))]
}

type apiSession struct {
	client *NodeAPIClient
	http   *http.Client
}

func (s *apiSession) FetchNodes(ctx context.Context, credential string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.client.apiURL, nil)
	if err != nil {
		return nil, errors.Mark(errors.ErrTransport, err)
	}
	s.client.setHeaders(req, credential)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		msg := strings.TrimSpace(string(body))
		if msg != "" {
			return nil, errors.Wrapf(errors.ErrTransport, "node api returned %s: %s", resp.Status, msg)
		}
		return nil, errors.Wrapf(errors.ErrTransport, "node api returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Mark(errors.ErrTransport, fmt.Errorf("read body: %w", err))
	}

	return &FetchResult{
		Body:            body,
		StatusCode:      resp.StatusCode,
		ContentType:     resp.Header.Get("Content-Type"),
		ContentEncoding: resp.Header.Get("Content-Encoding"),
		Server:          resp.Header.Get("Server"),
	}, nil
}

func (c *NodeAPIClient) setHeaders(req *http.Request, credential string) {
	// Setting Accept-Encoding by hand keeps net/http from touching the zstd body.
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", "zstd")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://bless.network")
	req.Header.Set("Referer", "https://bless.network/")
	req.Header.Set("User-Agent", c.userAgent())
}

// newHTTPClient builds a client with an optional HTTP proxy.
func newHTTPClient(timeout time.Duration, proxyURL string) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err != nil || proxy.Host == "" {
			return nil, errors.Wrapf(errors.ErrInvalidConfig, "proxy url %q", proxyURL)
		}
		transport.Proxy = http.ProxyURL(proxy)
	} else {
		transport.Proxy = nil
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}
