package marketplace

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Config holds configuration for the marketplace messaging API client
type Config struct {
	// BaseURL is the API root every path is appended to
	BaseURL string
	// TokenURL is the client-credentials endpoint, defaults to BaseURL + "/token"
	TokenURL string
	// TimeoutSeconds bounds each remote call. A timeout is reported as a failure.
	TimeoutSeconds int
	// RateLimitRPS paces outgoing calls, 0 disables pacing
	RateLimitRPS float64
	// RateLimitBurst is the number of calls allowed above the steady rate
	RateLimitBurst int
	// Transport wraps outgoing calls, nil uses http.DefaultTransport
	Transport http.RoundTripper
}

const (
	// DefaultTimeoutSeconds is used when TimeoutSeconds is not set
	DefaultTimeoutSeconds = 15
	// DefaultBaseURL is the production messenger API
	DefaultBaseURL = "https://api.avito.ru/messenger/v1"
)

// Errors for marketplace configuration
var (
	ErrConfigInvalidTimeout = errors.New("marketplace: timeout must be between 1 and 120 seconds")
	ErrConfigInvalidRate    = errors.New("marketplace: rate limit cannot be negative")
)

// Validate fills defaults and validates the configuration
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.TokenURL == "" {
		c.TokenURL = c.BaseURL + "/token"
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.TimeoutSeconds < 1 || c.TimeoutSeconds > 120 {
		return ErrConfigInvalidTimeout
	}
	if c.RateLimitRPS < 0 {
		return ErrConfigInvalidRate
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 1
	}
	return nil
}

func (c *Config) newHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   time.Duration(c.TimeoutSeconds) * time.Second,
		Transport: c.Transport,
	}
}
