package worker

import (
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultMaxSessions is how many calls a worker runs concurrently.
	DefaultMaxSessions = 4

	// DefaultStatusInterval is how often load is reported to dispatch.
	DefaultStatusInterval = 10 * time.Second

	// DefaultReconnectDelay is the wait between dispatch reconnects.
	DefaultReconnectDelay = 5 * time.Second

	// handshakeTimeout bounds the dispatch websocket dial.
	handshakeTimeout = 10 * time.Second
)

// Config holds worker settings.
type Config struct {
	// DispatchURL is the dispatch server websocket URL.
	DispatchURL string

	// Name identifies this worker to the dispatcher.
	Name string

	// MaxSessions bounds concurrent calls.
	MaxSessions int

	// StatusInterval is how often load is reported.
	StatusInterval time.Duration

	// ReconnectDelay is the wait between reconnect attempts.
	ReconnectDelay time.Duration

	Logger *slog.Logger
}

// Option modifies the worker configuration.
type Option func(*Config)

// WithName sets the worker name.
func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// WithMaxSessions bounds concurrent calls.
func WithMaxSessions(n int) Option {
	return func(c *Config) {
		c.MaxSessions = n
	}
}

// WithStatusInterval sets the load report period.
func WithStatusInterval(d time.Duration) Option {
	return func(c *Config) {
		c.StatusInterval = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		Name:           "voicebridge-worker",
		MaxSessions:    DefaultMaxSessions,
		StatusInterval: DefaultStatusInterval,
		ReconnectDelay: DefaultReconnectDelay,
		Logger:         slog.Default(),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.DispatchURL == "" {
		return fmt.Errorf("worker: dispatch URL is required")
	}
	if c.MaxSessions < 1 {
		return fmt.Errorf("worker: max sessions must be at least 1, got %d", c.MaxSessions)
	}
	if c.StatusInterval <= 0 {
		return fmt.Errorf("worker: status interval must be positive, got %v", c.StatusInterval)
	}
	return nil
}
