package fetcher

import (
	"net/http"
	"time"
)

// Defaults applied by Config.normalize.
const (
	DefaultConcurrency    = 8
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 5 * time.Second
	DefaultTimeout        = 60 * time.Second
	DefaultUserAgent      = "hls-reconstructor/1.0"
)

// Config controls concurrency, retry and pacing of a Fetcher.
type Config struct {
	// Concurrency is the fixed number of segment workers.
	Concurrency int
	// MaxRetries is the number of retries after the first attempt of a unit.
	MaxRetries       int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	RetryStatusCodes []int
	// RequestsPerSecond paces requests to the origin. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int
	// Timeout bounds a single HTTP request.
	Timeout   time.Duration
	UserAgent string
	// Headers are sent with every request.
	Headers map[string]string
}

func (c Config) normalize() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if len(c.RetryStatusCodes) == 0 {
		c.RetryStatusCodes = []int{
			http.StatusRequestTimeout,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		}
	}
	if c.Burst <= 0 {
		c.Burst = c.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

func (c Config) backoffFor(attempt int) time.Duration {
	backoff := c.InitialBackoff
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff > c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return backoff
}
