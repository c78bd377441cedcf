// Package speech adapts external HTTP speech services to the voice
// pipeline's Transcriber and Synthesizer capabilities. Any service with a
// transcribe endpoint accepting raw PCM16 and a synthesize endpoint
// returning raw PCM16 can back a session; the mocks in pkg/voice cover
// everything else.
package speech

import (
	"context"

	"github.com/voicebridge/voicebridge/pkg/audio"
)

// Sink receives synthesized audio. room.Room satisfies it, so a
// synthesizer can play straight into a call.
type Sink interface {
	WriteAudio(ctx context.Context, chunk audio.Chunk) error
}
