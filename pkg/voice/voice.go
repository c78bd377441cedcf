// Package voice defines the capability interfaces of the voice pipeline:
// the language model that produces replies, the transcriber and synthesizer
// that border it, and the endpointing detector that gates turns.
//
// Speech services themselves are external collaborators; this package
// specifies only the contracts the session orchestrator composes, plus mock
// implementations for testing and the local console.
package voice

import (
	"context"
	"errors"

	"github.com/voicebridge/voicebridge/pkg/audio"
)

// Common errors returned by pipeline components.
var (
	// ErrTurnInFlight is returned when a reply is requested while another
	// turn is still being processed for the same session.
	ErrTurnInFlight = errors.New("voice: turn already in flight")

	// ErrInterrupted is returned when an in-flight turn was cancelled by
	// the user speaking again. It is a control event, not a failure.
	ErrInterrupted = errors.New("voice: turn interrupted")

	// ErrStreamClosed is returned when reading from a closed fragment stream.
	ErrStreamClosed = errors.New("voice: stream closed")
)

// LanguageModel produces a reply for a finalized user utterance.
// Implementations own the request lifecycle, including cancellation.
type LanguageModel interface {
	// Reply submits one finalized utterance plus running context and
	// returns a cancellable lazy sequence of reply fragments. At most one
	// reply per session may be in flight.
	Reply(ctx context.Context, turn *Turn) (FragmentStream, error)

	// Interrupt cancels the in-flight reply, if any. Fragments not yet
	// received are discarded; fragments already handed out stand.
	Interrupt()
}

// Turn is one finalized user utterance plus running dialogue context.
type Turn struct {
	// Utterance is the finalized user speech.
	Utterance string

	// Context is prior dialogue, oldest first. May be empty.
	Context []Message
}

// Message is one entry of dialogue context.
type Message struct {
	Role    Role
	Content string
}

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// FragmentStream is an ordered, finite sequence of reply text fragments,
// consumed incrementally for low-latency speech synthesis.
type FragmentStream interface {
	// Recv returns the next fragment. The final fragment has Done set.
	Recv() (*Fragment, error)

	// Close stops the stream and releases resources.
	Close() error
}

// Fragment is an incremental unit of reply text.
type Fragment struct {
	// Text is the fragment content.
	Text string

	// Done is true when the stream is complete.
	Done bool
}

// Transcriber converts session audio into finalized utterances.
type Transcriber interface {
	// Start begins recognition. Call before feeding audio.
	Start(ctx context.Context) error

	// Feed submits an audio chunk for recognition.
	Feed(chunk audio.Chunk) error

	// Flush forces finalization of any pending utterance. Called when the
	// endpointing detector decides the user has finished speaking.
	Flush() error

	// Results returns the channel of transcripts. Finalized utterances
	// have Final set; the channel closes when the transcriber is closed.
	Results() <-chan Transcript

	// Close stops recognition and releases resources.
	Close() error
}

// Transcript is one recognition result.
type Transcript struct {
	// Text is the recognized speech.
	Text string

	// Final indicates the utterance is finalized and ready for a reply.
	Final bool
}

// Synthesizer converts reply fragments into speech.
type Synthesizer interface {
	// Speak consumes fragments as they arrive, synthesizing and playing
	// each in order. It blocks until the stream completes or ctx is
	// cancelled. Cancelling stops synthesis of fragments not yet emitted;
	// audio already played is not recalled.
	Speak(ctx context.Context, fragments FragmentStream) error

	// Close releases resources.
	Close() error
}

// TextStream wraps fixed text as a single-fragment stream.
// Used for greetings and fallback replies.
func TextStream(text string) FragmentStream {
	return &textStream{text: text}
}

type textStream struct {
	text string
	sent bool
}

func (s *textStream) Recv() (*Fragment, error) {
	if s.sent {
		return &Fragment{Done: true}, nil
	}
	s.sent = true
	return &Fragment{Text: s.text}, nil
}

func (s *textStream) Close() error {
	s.sent = true
	return nil
}
