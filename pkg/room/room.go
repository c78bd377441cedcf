// Package room connects a session to a media room: it joins over a
// signalling channel, waits for the human participant, and exchanges
// audio with them. Only audio is subscribed; rooms may carry other media
// but this service never receives it.
package room

import (
	"context"
	"errors"

	"github.com/voicebridge/voicebridge/pkg/audio"
)

var (
	// ErrNoParticipant is returned when no human joins the room before
	// the wait deadline.
	ErrNoParticipant = errors.New("room: no participant joined")

	// ErrClosed is returned when using a closed room.
	ErrClosed = errors.New("room: closed")
)

// Participant is the human on the other side of the call.
type Participant struct {
	// Identity is the participant's stable identifier.
	Identity string

	// Metadata is the opaque application payload attached at join time.
	// Sessions read their conversation thread out of it.
	Metadata string
}

// Room is an audio-only connection to one call.
type Room interface {
	// Connect joins the room. Audio is subscribed automatically; no other
	// media kind is requested.
	Connect(ctx context.Context) error

	// WaitForParticipant blocks until a human participant joins or ctx
	// expires, in which case it returns ErrNoParticipant.
	WaitForParticipant(ctx context.Context) (*Participant, error)

	// AudioIn returns the participant's audio. The channel closes when
	// the room closes.
	AudioIn() <-chan audio.Chunk

	// WriteAudio plays a chunk to the room.
	WriteAudio(ctx context.Context, chunk audio.Chunk) error

	// Close leaves the room and releases resources.
	Close() error
}
