package speech

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/voicebridge/voicebridge/internal/httpc"
)

const (
	// DefaultTimeout bounds one service request.
	DefaultTimeout = 30 * time.Second

	// DefaultSampleRate is the PCM16 rate exchanged with the service.
	DefaultSampleRate = 16000
)

// Config holds speech service settings.
type Config struct {
	// BaseURL is the speech service root, e.g. http://localhost:5005.
	BaseURL string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	// Voice selects the synthesis voice.
	Voice string

	// SampleRate is the PCM16 rate exchanged with the service.
	SampleRate int

	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Option modifies the speech configuration.
type Option func(*Config)

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithVoice selects the synthesis voice.
func WithVoice(voice string) Option {
	return func(c *Config) {
		c.Voice = voice
	}
}

// WithSampleRate sets the PCM16 rate exchanged with the service.
func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the default speech configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate: DefaultSampleRate,
		Timeout:    DefaultTimeout,
		Logger:     slog.Default(),
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
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	return nil
}

func (c *Config) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return httpc.NewClient(c.Timeout)
}
