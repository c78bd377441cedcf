package vad

import (
	"errors"
	"math"
	"testing"

	"github.com/voicebridge/voicebridge/pkg/audio"
)

func tonePCM(amplitude float64, samples int) []byte {
	out := make([]int16, samples)
	for i := range out {
		out[i] = int16(amplitude * 32767.0 * math.Sin(2*math.Pi*440*float64(i)/16000.0))
	}
	return audio.SamplesToBytes(out)
}

func silencePCM(samples int) []byte {
	return make([]byte, samples*2)
}

func TestModelRequiresLoad(t *testing.T) {
	m := NewModel(nil)

	if _, err := m.NewEngine(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}

	if err := m.Load(DefaultModelConfig()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !m.Loaded() {
		t.Error("expected model to report loaded")
	}

	engine, err := m.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer engine.Close()
}

func TestModelLoadIsIdempotent(t *testing.T) {
	m := NewModel(nil)
	if err := m.Load(DefaultModelConfig()); err != nil {
		t.Fatalf("first Load failed: %v", err)
	}
	if err := m.Load(DefaultModelConfig()); err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
}

func TestModelConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ModelConfig)
		wantErr bool
	}{
		{"default", func(c *ModelConfig) {}, false},
		{"zero activation", func(c *ModelConfig) { c.ActivationThreshold = 0 }, true},
		{"deactivation above activation", func(c *ModelConfig) { c.DeactivationThreshold = 0.5 }, true},
		{"negative hangover", func(c *ModelConfig) { c.HangoverChunks = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultModelConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnergyEngineDetectsSpeech(t *testing.T) {
	m := NewModel(nil)
	if err := m.Load(DefaultModelConfig()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	engine, err := m.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer engine.Close()

	res, err := engine.ProcessChunk(silencePCM(480), 16000)
	if err != nil {
		t.Fatalf("ProcessChunk failed: %v", err)
	}
	if res.IsSpeech {
		t.Error("silence classified as speech")
	}

	res, err = engine.ProcessChunk(tonePCM(0.5, 480), 16000)
	if err != nil {
		t.Fatalf("ProcessChunk failed: %v", err)
	}
	if !res.IsSpeech {
		t.Error("loud tone not classified as speech")
	}
	if res.Confidence != 1 {
		t.Errorf("expected clamped confidence 1, got %f", res.Confidence)
	}
}

func TestEnergyEngineHangover(t *testing.T) {
	cfg := DefaultModelConfig()
	cfg.HangoverChunks = 2
	m := NewModel(nil)
	if err := m.Load(cfg); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	engine, err := m.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer engine.Close()

	if _, err := engine.ProcessChunk(tonePCM(0.5, 480), 16000); err != nil {
		t.Fatalf("ProcessChunk failed: %v", err)
	}

	// Two quiet chunks stay inside the hangover window.
	for i := 0; i < 2; i++ {
		res, err := engine.ProcessChunk(silencePCM(480), 16000)
		if err != nil {
			t.Fatalf("ProcessChunk failed: %v", err)
		}
		if !res.IsSpeech {
			t.Fatalf("chunk %d: hangover should still report speech", i)
		}
	}

	// The third quiet chunk exceeds it.
	res, err := engine.ProcessChunk(silencePCM(480), 16000)
	if err != nil {
		t.Fatalf("ProcessChunk failed: %v", err)
	}
	if res.IsSpeech {
		t.Error("expected silence after hangover window")
	}
}

func TestEnergyEngineReset(t *testing.T) {
	m := NewModel(nil)
	if err := m.Load(DefaultModelConfig()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	engine, err := m.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer engine.Close()

	if _, err := engine.ProcessChunk(tonePCM(0.5, 480), 16000); err != nil {
		t.Fatalf("ProcessChunk failed: %v", err)
	}
	if err := engine.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	res, err := engine.ProcessChunk(silencePCM(480), 16000)
	if err != nil {
		t.Fatalf("ProcessChunk failed: %v", err)
	}
	if res.IsSpeech {
		t.Error("expected silence after reset")
	}
}

func TestEngineClosed(t *testing.T) {
	m := NewModel(nil)
	if err := m.Load(DefaultModelConfig()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	engine, err := m.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := engine.ProcessChunk(silencePCM(480), 16000); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestEnginesAreIndependent(t *testing.T) {
	m := NewModel(nil)
	if err := m.Load(DefaultModelConfig()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	a, err := m.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer a.Close()
	b, err := m.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer b.Close()

	if _, err := a.ProcessChunk(tonePCM(0.5, 480), 16000); err != nil {
		t.Fatalf("ProcessChunk failed: %v", err)
	}
	res, err := b.ProcessChunk(silencePCM(480), 16000)
	if err != nil {
		t.Fatalf("ProcessChunk failed: %v", err)
	}
	if res.IsSpeech {
		t.Error("state leaked between engines")
	}
}
