// Package config loads the larkmcp process configuration from the
// environment. Missing application credentials are a fatal startup error,
// reported as *ConfigError, distinct from the runtime auth errors in the
// lark package.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Environment variable names.
const (
	EnvAppID            = "LARK_APP_ID"
	EnvAppSecret        = "LARK_APP_SECRET"
	EnvUserRefreshToken = "LARK_USER_REFRESH_TOKEN"
	EnvBaseURL          = "LARK_BASE_URL"
	EnvPort             = "PORT"
)

// DefaultBaseURL is the public Lark Open Platform API base.
const DefaultBaseURL = "https://open.feishu.cn/open-apis"

// DefaultRequestTimeout bounds outbound API and identity-endpoint calls.
const DefaultRequestTimeout = 30 * time.Second

// ConfigError reports missing or invalid startup configuration. It is fatal:
// the process refuses to start rather than failing per-request later.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Missing, ", "))
}

// Config holds the process configuration.
type Config struct {
	// AppID and AppSecret are the Lark application credentials. Required.
	AppID     string
	AppSecret string

	// UserRefreshToken is the stored user credential. Optional; without it
	// tools requiring a user token fail with an auth error at call time.
	UserRefreshToken string

	// BaseURL is the Lark API base, default DefaultBaseURL.
	BaseURL string

	// Port is the listening port for the HTTP transport, default "8080".
	Port string

	// RequestTimeout bounds every outbound call.
	RequestTimeout time.Duration
}

// Load reads configuration from the environment. It returns *ConfigError if
// required values are absent.
func Load() (*Config, error) {
	cfg := &Config{
		AppID:            os.Getenv(EnvAppID),
		AppSecret:        os.Getenv(EnvAppSecret),
		UserRefreshToken: os.Getenv(EnvUserRefreshToken),
		BaseURL:          getEnvOrDefault(EnvBaseURL, DefaultBaseURL),
		Port:             getEnvOrDefault(EnvPort, "8080"),
		RequestTimeout:   DefaultRequestTimeout,
	}

	var missing []string
	if cfg.AppID == "" {
		missing = append(missing, EnvAppID)
	}
	if cfg.AppSecret == "" {
		missing = append(missing, EnvAppSecret)
	}
	if len(missing) > 0 {
		return nil, &ConfigError{Missing: missing}
	}

	return cfg, nil
}

// HTTPAddr returns the listen address derived from Port.
func (c *Config) HTTPAddr() string {
	return ":" + c.Port
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
