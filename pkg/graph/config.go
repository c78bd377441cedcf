package graph

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Default remote service settings.
const (
	DefaultBaseURL = "http://localhost:2024"
	DefaultGraph   = "todo_agent"
)

// Config holds client configuration.
type Config struct {
	// Timeouts
	Timeout       time.Duration // wait for response headers
	StreamTimeout time.Duration // total lifetime of a streamed response

	// HTTPClient overrides the pooled default client. The client is shared
	// across sessions; each call carries its own thread identifier.
	HTTPClient *http.Client

	// TokenSource supplies bearer tokens when the remote service sits
	// behind an authenticating gateway. Nil means unauthenticated.
	TokenSource oauth2.TokenSource

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithTimeout sets how long to wait for response headers.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithStreamTimeout sets the streaming response timeout.
func WithStreamTimeout(d time.Duration) Option {
	return func(c *Config) { c.StreamTimeout = d }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) { c.HTTPClient = hc }
}

// WithTokenSource sets an OAuth2 token source for request authorization.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Config) { c.TokenSource = ts }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns sensible defaults for a local dev server.
func DefaultConfig() *Config {
	return &Config{
		Timeout:       30 * time.Second,
		StreamTimeout: 120 * time.Second,
		Logger:        slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
