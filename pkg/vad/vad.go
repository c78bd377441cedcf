// Package vad provides voice activity detection for the audio pipeline.
//
// A Model holds the tuning shared by every session and is loaded once at
// process start, before any call is accepted. Each session then creates its
// own Engine from the model; engines carry per-stream smoothing state and
// must not be shared across sessions.
package vad

import "errors"

var (
	// ErrNotLoaded is returned when an engine is requested from a model
	// that has not been loaded.
	ErrNotLoaded = errors.New("vad: model not loaded")

	// ErrClosed is returned when processing audio on a closed engine.
	ErrClosed = errors.New("vad: engine closed")
)

// Result is the detection outcome for one audio chunk.
type Result struct {
	IsSpeech   bool
	Confidence float32
}

// Engine detects speech in a stream of audio chunks. Implementations keep
// per-stream state and are not safe for concurrent use.
type Engine interface {
	// ProcessChunk analyzes one chunk of 16-bit little-endian PCM.
	ProcessChunk(pcm []byte, sampleRate int) (Result, error)

	// Reset clears streaming state for a new utterance.
	Reset() error

	// Close releases the engine.
	Close() error
}
