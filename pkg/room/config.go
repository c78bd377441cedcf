package room

import (
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultHandshakeTimeout bounds the signalling websocket dial.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultConnectTimeout bounds the full join, including the media
	// handshake.
	DefaultConnectTimeout = 15 * time.Second

	// DefaultSampleRate is the room's audio clock.
	DefaultSampleRate = 48000

	// frameSamples is one 20ms opus frame at the room sample rate.
	frameSamples = DefaultSampleRate / 50
)

// Config holds room connection settings.
type Config struct {
	// URL is the signalling server websocket URL.
	URL string

	// Name is the room to join.
	Name string

	// Token authorizes the join.
	Token string

	// Identity is this agent's participant identity.
	Identity string

	HandshakeTimeout time.Duration
	ConnectTimeout   time.Duration
	Logger           *slog.Logger
}

// Option modifies the room configuration.
type Option func(*Config)

// WithHandshakeTimeout sets the signalling dial timeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.HandshakeTimeout = d
	}
}

// WithConnectTimeout sets the full join timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ConnectTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithIdentity sets the agent's participant identity.
func WithIdentity(identity string) Option {
	return func(c *Config) {
		c.Identity = identity
	}
}

func (c *Config) applyDefaults() {
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Identity == "" {
		c.Identity = "agent"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("room: signalling URL is required")
	}
	if c.Name == "" {
		return fmt.Errorf("room: room name is required")
	}
	return nil
}
