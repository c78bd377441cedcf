package vad

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ModelConfig tunes detection.
type ModelConfig struct {
	// ActivationThreshold is the normalized energy above which a chunk
	// counts as speech.
	ActivationThreshold float64

	// DeactivationThreshold is the normalized energy below which a chunk
	// counts as silence. Keeping it under the activation threshold adds
	// hysteresis so speech does not flicker at the boundary.
	DeactivationThreshold float64

	// HangoverChunks is how many sub-threshold chunks an engine tolerates
	// before reporting silence.
	HangoverChunks int
}

// DefaultModelConfig returns tuning that works for close-mic speech at
// typical room noise levels.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		ActivationThreshold:   0.02,
		DeactivationThreshold: 0.01,
		HangoverChunks:        4,
	}
}

func (c ModelConfig) Validate() error {
	if c.ActivationThreshold <= 0 {
		return fmt.Errorf("vad: activation threshold must be positive, got %f", c.ActivationThreshold)
	}
	if c.DeactivationThreshold <= 0 || c.DeactivationThreshold > c.ActivationThreshold {
		return fmt.Errorf("vad: deactivation threshold must be in (0, %f], got %f",
			c.ActivationThreshold, c.DeactivationThreshold)
	}
	if c.HangoverChunks < 0 {
		return fmt.Errorf("vad: hangover chunks must be non-negative, got %d", c.HangoverChunks)
	}
	return nil
}

// Model is the shared detection model. Load it once during worker prewarm,
// then hand the same instance to every session. The model itself is
// read-only after Load and safe for concurrent use; the engines it creates
// are not.
type Model struct {
	mu     sync.RWMutex
	cfg    ModelConfig
	loaded bool
	logger *slog.Logger
}

// NewModel creates an unloaded model.
func NewModel(logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{logger: logger.With("component", "vad.model")}
}

// Load prepares the model for use. Call it from the worker prewarm hook so
// the first session does not pay the cost.
func (m *Model) Load(cfg ModelConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return nil
	}

	start := time.Now()
	m.cfg = cfg
	m.loaded = true
	m.logger.Info("model loaded",
		"activation", cfg.ActivationThreshold,
		"hangover_chunks", cfg.HangoverChunks,
		"duration", time.Since(start))
	return nil
}

// Loaded reports whether Load has completed.
func (m *Model) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// NewEngine creates a per-session detection engine backed by this model.
func (m *Model) NewEngine() (Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loaded {
		return nil, ErrNotLoaded
	}
	return newEnergyEngine(m.cfg), nil
}
