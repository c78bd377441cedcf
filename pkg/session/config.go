package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/voicebridge/voicebridge/pkg/bridge"
	"github.com/voicebridge/voicebridge/pkg/voice"
)

const (
	// DefaultGreeting is spoken once the participant joins. It is
	// interruptible like any other reply.
	DefaultGreeting = "Hey, how can I help you today?"

	// DefaultParticipantTimeout bounds how long a session waits for a
	// human to join before giving up.
	DefaultParticipantTimeout = 30 * time.Second
)

// Config holds session settings.
type Config struct {
	// Greeting is spoken when the participant joins. Empty disables it.
	Greeting string

	// Instructions seed the dialogue context as a system message.
	Instructions string

	// ParticipantTimeout bounds the wait for a human participant.
	ParticipantTimeout time.Duration

	// Endpoint tunes turn-taking detection.
	Endpoint voice.EndpointConfig

	// BridgeOptions are passed through to the turn-exchange bridge.
	BridgeOptions []bridge.Option

	Logger *slog.Logger
}

// Option modifies the session configuration.
type Option func(*Config)

// WithGreeting sets the opening utterance. Pass empty to stay silent.
func WithGreeting(text string) Option {
	return func(c *Config) {
		c.Greeting = text
	}
}

// WithInstructions sets the system instructions for the dialogue.
func WithInstructions(text string) Option {
	return func(c *Config) {
		c.Instructions = text
	}
}

// WithParticipantTimeout sets how long to wait for a human to join.
func WithParticipantTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ParticipantTimeout = d
	}
}

// WithEndpointConfig tunes turn-taking detection.
func WithEndpointConfig(cfg voice.EndpointConfig) Option {
	return func(c *Config) {
		c.Endpoint = cfg
	}
}

// WithBridgeOptions passes options to the turn-exchange bridge.
func WithBridgeOptions(opts ...bridge.Option) Option {
	return func(c *Config) {
		c.BridgeOptions = append(c.BridgeOptions, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Greeting:           DefaultGreeting,
		ParticipantTimeout: DefaultParticipantTimeout,
		Endpoint:           voice.DefaultEndpointConfig(),
		Logger:             slog.Default(),
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
	if c.ParticipantTimeout <= 0 {
		return fmt.Errorf("session: participant timeout must be positive, got %v", c.ParticipantTimeout)
	}
	return c.Endpoint.Validate()
}
