package kitamanager

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/osvaldomontes/kitamanager/repo"
)

// SiteConfig holds all configuration for a kitamanager server.
type SiteConfig struct {
	Addr string // Listen address (default ":5000")

	SessionSecret string // Required: derives the cookie signing and encryption keys
	CookieSecure  bool   // Set true for HTTPS

	APIBaseURL string        // GitHub REST endpoint (default https://api.github.com)
	APITimeout time.Duration // Bound on each GitHub call (default 15s)

	TemplateOwner     string        // Template repository owner (default "daradege")
	TemplateRepo      string        // Template repository name (default "kita-farsi")
	ProvisionAttempts int           // Readiness polls after creating a blog (default 10)
	ProvisionInterval time.Duration // Delay between readiness polls (default 1s)

	AuthRate  rate.Limit // Token submissions per second per IP (default 5 per minute)
	AuthBurst int        // Burst of token submissions per IP (default 5)
}

func (c *SiteConfig) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":5000"
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = "https://api.github.com"
	}
	if c.APITimeout <= 0 {
		c.APITimeout = 15 * time.Second
	}
	if c.TemplateOwner == "" {
		c.TemplateOwner = "daradege"
	}
	if c.TemplateRepo == "" {
		c.TemplateRepo = "kita-farsi"
	}
	if c.ProvisionAttempts <= 0 {
		c.ProvisionAttempts = repo.DefaultPollPolicy.Attempts
	}
	if c.ProvisionInterval <= 0 {
		c.ProvisionInterval = repo.DefaultPollPolicy.Interval
	}
	if c.AuthRate <= 0 {
		c.AuthRate = rate.Every(12 * time.Second)
	}
	if c.AuthBurst <= 0 {
		c.AuthBurst = 5
	}
}

func (c SiteConfig) pollPolicy() repo.PollPolicy {
	return repo.PollPolicy{Attempts: c.ProvisionAttempts, Interval: c.ProvisionInterval}
}

// Option configures additional App behavior.
type Option func(*App)

// WithClientFactory replaces the GitHub client constructor, typically with a
// fake in tests.
func WithClientFactory(f ClientFactory) Option {
	return func(a *App) {
		a.newClient = f
	}
}

// WithLogger sets the logger used for requests and failed operations.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// WithClock overrides the time source used to date new posts.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}
