package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kyvra-tech/node-reward-monitor/internal/models"
	"github.com/kyvra-tech/node-reward-monitor/pkg/errors"
)

const (
	DefaultAPIURL       = "https://gateway-run.bls.dev/api/v1/nodes"
	defaultIdentityName = "default"
)

type Config struct {
	API        APIConfig
	Webhook    WebhookConfig
	Proxy      ProxyConfig
	Monitor    MonitorConfig
	Schedule   ScheduleConfig
	Server     ServerConfig
	Logger     LoggerConfig
	Identities []models.Identity

	// MultiIdentity is set when identities come from IDENTITIES_FILE; reports then carry
	// the identity name and fetches are jittered.
	MultiIdentity bool
}

type APIConfig struct {
	URL            string
	RequestTimeout time.Duration
}

type WebhookConfig struct {
	URL           string
	RatePerMinute int
}

type ProxyConfig struct {
	Enabled bool
	URL     string
}

// Effective returns the proxy URL to use, or "" when the proxy is disabled.
func (p ProxyConfig) Effective() string {
	if !p.Enabled {
		return ""
	}
	return p.URL
}

type MonitorConfig struct {
	AlwaysNotify       bool
	ReportRemovedNodes bool
	TimeOffset         time.Duration
	KeyPrefixLength    int
	JitterMin          time.Duration
	JitterMax          time.Duration
}

type ScheduleConfig struct {
	PollInterval     time.Duration
	RetryDelay       time.Duration
	MaxConcurrent    int
	StatusReportCron string
}

type ServerConfig struct {
	Enabled bool
	Host    string
	Port    int
}

type LoggerConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// It's okay if .env file doesn't exist in production
	}

	offsetHours := getEnvAsInt("TIME_OFFSET_HOURS", 8)

	cfg := &Config{
		API: APIConfig{
			URL:            getEnv("API_URL", DefaultAPIURL),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		},
		Webhook: WebhookConfig{
			URL:           getEnv("WEBHOOK_URL", ""),
			RatePerMinute: getEnvAsInt("WEBHOOK_RATE_PER_MINUTE", 20),
		},
		Proxy: ProxyConfig{
			Enabled: getEnvAsBool("USE_PROXY", false),
			URL:     getEnv("PROXY_URL", "http://localhost:7890"),
		},
		Monitor: MonitorConfig{
			AlwaysNotify:       getEnvAsBool("ALWAYS_NOTIFY", false),
			ReportRemovedNodes: getEnvAsBool("REPORT_REMOVED_NODES", true),
			TimeOffset:         time.Duration(offsetHours) * time.Hour,
			KeyPrefixLength:    getEnvAsInt("KEY_PREFIX_LENGTH", 20),
			JitterMin:          getEnvAsDuration("JITTER_MIN", 3*time.Second),
			JitterMax:          getEnvAsDuration("JITTER_MAX", 10*time.Second),
		},
		Schedule: ScheduleConfig{
			PollInterval:     getEnvAsDuration("POLL_INTERVAL", 300*time.Second),
			RetryDelay:       getEnvAsDuration("RETRY_DELAY", 5*time.Second),
			MaxConcurrent:    getEnvAsInt("MAX_CONCURRENT_IDENTITIES", 0),
			StatusReportCron: getEnv("STATUS_REPORT_CRON", ""),
		},
		Server: ServerConfig{
			Enabled: getEnvAsBool("SERVER_ENABLED", false),
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:    getEnvAsInt("SERVER_PORT", 4622),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if path := getEnv("IDENTITIES_FILE", ""); path != "" {
		identities, err := LoadIdentitiesFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Identities = identities
		cfg.MultiIdentity = true
	} else if token := getEnv("API_TOKEN", ""); token != "" {
		cfg.Identities = []models.Identity{{
			Name:       getEnv("API_TOKEN_NAME", defaultIdentityName),
			Credential: token,
		}}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the monitor cannot run without.
func (c *Config) Validate() error {
	var problems []string
	if c.API.URL == "" {
		problems = append(problems, "API_URL is required")
	}
	if c.Webhook.URL == "" {
		problems = append(problems, "WEBHOOK_URL is required")
	}
	if len(c.Identities) == 0 {
		problems = append(problems, "either API_TOKEN or IDENTITIES_FILE must be set")
	}
	if c.Proxy.Enabled && c.Proxy.URL == "" {
		problems = append(problems, "PROXY_URL is required when USE_PROXY is set")
	}
	if c.Schedule.PollInterval <= 0 {
		problems = append(problems, "POLL_INTERVAL must be positive")
	}
	if c.Schedule.RetryDelay <= 0 {
		problems = append(problems, "RETRY_DELAY must be positive")
	}
	if c.Monitor.JitterMin < 0 || c.Monitor.JitterMax < c.Monitor.JitterMin {
		problems = append(problems, "JITTER_MIN must be >= 0 and <= JITTER_MAX")
	}

	if len(problems) > 0 {
		return errors.Wrap(errors.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("5m") and bare numbers of seconds ("300").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(seconds * float64(time.Second))
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return d
}

func (c *Config) String() string {
	return fmt.Sprintf("api=%s identities=%d multi=%t interval=%s proxy=%t",
		c.API.URL, len(c.Identities), c.MultiIdentity, c.Schedule.PollInterval, c.Proxy.Enabled)
}
