package voice

import (
	"log/slog"
	"time"

	"github.com/voicebridge/voicebridge/pkg/audio"
	"github.com/voicebridge/voicebridge/pkg/vad"
)

// EndpointEvent signals a turn-taking transition.
type EndpointEvent int

const (
	// EventNone means no transition occurred.
	EventNone EndpointEvent = iota

	// EventSpeechStart means the user started speaking.
	EventSpeechStart

	// EventSpeechEnd means the user stopped speaking.
	EventSpeechEnd

	// EventEndOfTurn means enough silence has followed speech that the
	// utterance should be finalized.
	EventEndOfTurn
)

func (e EndpointEvent) String() string {
	switch e {
	case EventSpeechStart:
		return "speech_start"
	case EventSpeechEnd:
		return "speech_end"
	case EventEndOfTurn:
		return "end_of_turn"
	default:
		return "none"
	}
}

// Endpointer gates turns: it feeds audio through a VAD engine and decides
// when the user has finished speaking. One Endpointer serves one session;
// it is not safe for concurrent use.
type Endpointer struct {
	engine vad.Engine
	cfg    EndpointConfig
	logger *slog.Logger

	speaking   bool
	inTurn     bool
	lastSpeech time.Time
}

// NewEndpointer creates an endpointing detector around a session-scoped VAD
// engine.
func NewEndpointer(engine vad.Engine, cfg EndpointConfig, logger *slog.Logger) (*Endpointer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Endpointer{
		engine: engine,
		cfg:    cfg,
		logger: logger.With("component", "voice.endpointer"),
	}, nil
}

// Process consumes one audio chunk and returns the turn-taking transition it
// caused, if any. now is passed explicitly so tests control the clock.
func (e *Endpointer) Process(chunk audio.Chunk, now time.Time) (EndpointEvent, error) {
	result, err := e.engine.ProcessChunk(chunk.Bytes(), chunk.SampleRate)
	if err != nil {
		return EventNone, err
	}

	if result.IsSpeech {
		e.lastSpeech = now
		if !e.speaking {
			e.speaking = true
			e.inTurn = true
			e.logger.Debug("speech started", "confidence", result.Confidence)
			return EventSpeechStart, nil
		}
		return EventNone, nil
	}

	if e.speaking {
		e.speaking = false
		e.logger.Debug("speech ended")
		return EventSpeechEnd, nil
	}

	if e.inTurn && now.Sub(e.lastSpeech) >= e.cfg.MinDelay {
		e.inTurn = false
		e.logger.Debug("end of turn", "silence", now.Sub(e.lastSpeech))
		return EventEndOfTurn, nil
	}

	return EventNone, nil
}

// Speaking reports whether the user is currently speaking.
func (e *Endpointer) Speaking() bool {
	return e.speaking
}

// Reset clears state for a new conversation.
func (e *Endpointer) Reset() error {
	e.speaking = false
	e.inTurn = false
	e.lastSpeech = time.Time{}
	return e.engine.Reset()
}
