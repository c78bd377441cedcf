package voice

import (
	"fmt"
	"time"
)

// Default endpointing delays, matching the turn-detection defaults the
// pipeline was tuned against.
const (
	DefaultMinEndpointingDelay = 500 * time.Millisecond
	DefaultMaxEndpointingDelay = 5 * time.Second
)

// EndpointConfig controls end-of-utterance detection.
type EndpointConfig struct {
	// MinDelay is the silence duration after speech before the turn is
	// considered finished.
	MinDelay time.Duration

	// MaxDelay is the ceiling: once this much time has passed since
	// speech last ended, the turn is finalized regardless of how
	// confident the detector is.
	MaxDelay time.Duration
}

// DefaultEndpointConfig returns the standard endpointing thresholds.
func DefaultEndpointConfig() EndpointConfig {
	return EndpointConfig{
		MinDelay: DefaultMinEndpointingDelay,
		MaxDelay: DefaultMaxEndpointingDelay,
	}
}

// Validate checks the endpointing thresholds are coherent.
func (c EndpointConfig) Validate() error {
	if c.MinDelay <= 0 {
		return fmt.Errorf("voice: min endpointing delay must be positive, got %v", c.MinDelay)
	}
	if c.MaxDelay < c.MinDelay {
		return fmt.Errorf("voice: max endpointing delay %v below min %v", c.MaxDelay, c.MinDelay)
	}
	return nil
}
