package bridge

import (
	"fmt"
	"log/slog"
)

const (
	// DefaultFailureThreshold is how many consecutive remote failures the
	// bridge tolerates before going fatal.
	DefaultFailureThreshold = 3

	// DefaultFallbackText is spoken when a turn fails transiently.
	DefaultFallbackText = "Sorry, I'm having trouble reaching my brain right now. Could you say that again?"
)

// Config holds bridge settings.
type Config struct {
	FailureThreshold int
	FallbackText     string
	Logger           *slog.Logger
}

// Option modifies the bridge configuration.
type Option func(*Config)

// WithFailureThreshold sets how many consecutive failures are tolerated.
func WithFailureThreshold(n int) Option {
	return func(c *Config) {
		c.FailureThreshold = n
	}
}

// WithFallbackText sets the utterance spoken on a transient failure.
func WithFallbackText(text string) Option {
	return func(c *Config) {
		c.FallbackText = text
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the default bridge configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: DefaultFailureThreshold,
		FallbackText:     DefaultFallbackText,
		Logger:           slog.Default(),
	}
}

// Apply applies options to the configuration.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.FailureThreshold < 1 {
		return fmt.Errorf("bridge: failure threshold must be at least 1, got %d", c.FailureThreshold)
	}
	if c.FallbackText == "" {
		return fmt.Errorf("bridge: fallback text must not be empty")
	}
	return nil
}
