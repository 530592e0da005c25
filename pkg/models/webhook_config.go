package models

import "time"

// Defaults applied when a webhook config carries non-positive numeric
// settings. Invalid input is coerced rather than rejected, preserving the
// lenient behavior of the surrounding system's configuration layer.
const (
	DefaultWebhookTimeout     = 30 * time.Second
	DefaultWebhookRateLimit   = 60
	DefaultWebhookRatePeriod  = 60 * time.Second
	DefaultWebhookMaxRetries  = 3
	DefaultWebhookRetryDelay  = 5 * time.Second
	DefaultWebhookMaxRateWait = 2 * time.Minute
)

// WebhookAuthType identifies how outbound webhook calls authenticate.
type WebhookAuthType string

const (
	WebhookAuthNone   WebhookAuthType = "none"
	WebhookAuthBearer WebhookAuthType = "bearer"
	WebhookAuthBasic  WebhookAuthType = "basic"
	WebhookAuthHMAC   WebhookAuthType = "hmac"
)

// WebhookAuth describes the authentication applied to calls to a target.
// For HMAC, Secret signs the request body (X-Macrod-Signature header).
type WebhookAuth struct {
	Type     WebhookAuthType `json:"type"`
	Token    string          `json:"token,omitempty"`
	Username string          `json:"username,omitempty"`
	Password string          `json:"password,omitempty"`
	Secret   string          `json:"secret,omitempty"`
}

// WebhookConfig is the per-target configuration for outbound webhook calls:
// authentication, rate limiting, timeout and retry behavior. Repositories
// decode a fresh copy per read; Normalize coerces that copy in place.
type WebhookConfig struct {
	ID      string      `json:"id"   validate:"required"`
	Name    string      `json:"name" validate:"required"`
	URL     string      `json:"url"  validate:"required,url"`
	Auth    WebhookAuth `json:"auth"`
	Enabled bool        `json:"enabled"`

	RateLimitEnabled bool          `json:"rate_limit_enabled"`
	RateLimit        int           `json:"rate_limit"`
	RateLimitPeriod  time.Duration `json:"rate_limit_period"`

	Timeout       time.Duration `json:"timeout"`
	RetryEnabled  bool          `json:"retry_enabled"`
	MaxRetryCount int           `json:"max_retry_count"`
	RetryDelay    time.Duration `json:"retry_delay"`

	// MaxRateWait bounds how long a rate-limited call defers before the
	// deferral converts into a dependency failure.
	MaxRateWait time.Duration `json:"max_rate_wait"`

	LogRequests  bool `json:"log_requests"`
	LogResponses bool `json:"log_responses"`
}

// Normalize coerces non-positive numeric settings to the documented
// defaults and returns the receiver for chaining. All engine code reads
// webhook configs through this.
func (c *WebhookConfig) Normalize() *WebhookConfig {
	if c.Timeout <= 0 {
		c.Timeout = DefaultWebhookTimeout
	}

	if c.RateLimit <= 0 {
		c.RateLimit = DefaultWebhookRateLimit
	}

	if c.RateLimitPeriod <= 0 {
		c.RateLimitPeriod = DefaultWebhookRatePeriod
	}

	if c.MaxRetryCount <= 0 {
		c.MaxRetryCount = DefaultWebhookMaxRetries
	}

	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultWebhookRetryDelay
	}

	if c.MaxRateWait <= 0 {
		c.MaxRateWait = DefaultWebhookMaxRateWait
	}

	return c
}
