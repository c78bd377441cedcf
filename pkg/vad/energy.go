package vad

import (
	"github.com/voicebridge/voicebridge/pkg/audio"
)

// energyEngine classifies chunks by normalized RMS energy with hysteresis
// and a hangover window, so short pauses inside a word do not register as
// silence.
type energyEngine struct {
	cfg      ModelConfig
	speaking bool
	quiet    int
	closed   bool
}

func newEnergyEngine(cfg ModelConfig) *energyEngine {
	return &energyEngine{cfg: cfg}
}

func (e *energyEngine) ProcessChunk(pcm []byte, sampleRate int) (Result, error) {
	if e.closed {
		return Result{}, ErrClosed
	}

	samples := audio.BytesToSamples(pcm)
	rms := audio.CalculateRMS(samples)
	confidence := float32(rms / e.cfg.ActivationThreshold)
	if confidence > 1 {
		confidence = 1
	}

	if e.speaking {
		if rms < e.cfg.DeactivationThreshold {
			e.quiet++
			if e.quiet > e.cfg.HangoverChunks {
				e.speaking = false
				e.quiet = 0
			}
		} else {
			e.quiet = 0
		}
	} else if rms >= e.cfg.ActivationThreshold {
		e.speaking = true
		e.quiet = 0
	}

	return Result{IsSpeech: e.speaking, Confidence: confidence}, nil
}

func (e *energyEngine) Reset() error {
	if e.closed {
		return ErrClosed
	}
	e.speaking = false
	e.quiet = 0
	return nil
}

func (e *energyEngine) Close() error {
	e.closed = true
	return nil
}

var _ Engine = (*energyEngine)(nil)
