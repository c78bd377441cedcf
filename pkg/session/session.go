// Package session orchestrates one voice call end to end: it joins the
// room, resolves the caller's conversation thread, wires the audio
// pipeline to the turn-exchange bridge, and runs the turn loop until the
// call ends or the bridge gives up.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voicebridge/voicebridge/pkg/bridge"
	"github.com/voicebridge/voicebridge/pkg/graph"
	"github.com/voicebridge/voicebridge/pkg/room"
	"github.com/voicebridge/voicebridge/pkg/thread"
	"github.com/voicebridge/voicebridge/pkg/vad"
	"github.com/voicebridge/voicebridge/pkg/voice"
)

// ErrNoParticipant is returned when the call times out before a human
// joins.
var ErrNoParticipant = errors.New("session: no participant joined")

// State is the session lifecycle state.
type State int

const (
	StateConnecting State = iota
	StateAwaitingParticipant
	StateActive
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingParticipant:
		return "awaiting_participant"
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Deps are the collaborators a session composes. The VAD model is shared
// across sessions and must be loaded before the first call; everything
// else belongs to this session alone.
type Deps struct {
	Room        room.Room
	Invoker     graph.Invoker
	Model       *vad.Model
	Transcriber voice.Transcriber
	Synthesizer voice.Synthesizer
}

func (d Deps) validate() error {
	switch {
	case d.Room == nil:
		return errors.New("session: room is required")
	case d.Invoker == nil:
		return errors.New("session: invoker is required")
	case d.Model == nil:
		return errors.New("session: vad model is required")
	case d.Transcriber == nil:
		return errors.New("session: transcriber is required")
	case d.Synthesizer == nil:
		return errors.New("session: synthesizer is required")
	}
	return nil
}

// Session runs one voice call.
type Session struct {
	id     string
	cfg    Config
	deps   Deps
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	bridge      *bridge.Bridge
	speakCancel context.CancelFunc
	history     []voice.Message

	utterances chan string
}

// New creates a session. Run starts it.
func New(deps Deps, opts ...Option) (*Session, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	return &Session{
		id:         id,
		cfg:        cfg,
		deps:       deps,
		logger:     cfg.Logger.With("component", "session", "session_id", id),
		utterances: make(chan string, 4),
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Thread returns the conversation thread, once resolved or adopted.
func (s *Session) Thread() thread.Identity {
	s.mu.Lock()
	b := s.bridge
	s.mu.Unlock()
	if b == nil {
		return thread.None()
	}
	return b.Thread()
}

// Run drives the call until the participant leaves, ctx is cancelled, or
// the bridge goes fatal. It always leaves the room before returning.
func (s *Session) Run(ctx context.Context) error {
	defer s.end()

	s.setState(StateConnecting)
	if err := s.deps.Room.Connect(ctx); err != nil {
		return fmt.Errorf("session: connect: %w", err)
	}

	s.setState(StateAwaitingParticipant)
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.ParticipantTimeout)
	participant, err := s.deps.Room.WaitForParticipant(waitCtx)
	cancel()
	if err != nil {
		if errors.Is(err, room.ErrNoParticipant) {
			return fmt.Errorf("%w after %v", ErrNoParticipant, s.cfg.ParticipantTimeout)
		}
		return fmt.Errorf("session: wait for participant: %w", err)
	}

	identity := thread.FromMetadata(participant.Metadata, s.logger)

	b, err := bridge.New(s.deps.Invoker, identity, s.bridgeOptions()...)
	if err != nil {
		return fmt.Errorf("session: bridge: %w", err)
	}

	engine, err := s.deps.Model.NewEngine()
	if err != nil {
		return fmt.Errorf("session: vad engine: %w", err)
	}
	defer engine.Close()

	endpointer, err := voice.NewEndpointer(engine, s.cfg.Endpoint, s.logger)
	if err != nil {
		return fmt.Errorf("session: endpointer: %w", err)
	}

	if err := s.deps.Transcriber.Start(ctx); err != nil {
		return fmt.Errorf("session: transcriber: %w", err)
	}

	s.mu.Lock()
	s.bridge = b
	if s.cfg.Instructions != "" {
		s.history = []voice.Message{{Role: voice.RoleSystem, Content: s.cfg.Instructions}}
	}
	s.mu.Unlock()

	s.setState(StateActive)
	s.logger.Info("session active",
		"participant", participant.Identity,
		"thread", identity.String())

	turnCtx, stopTurns := context.WithCancel(ctx)
	var turns sync.WaitGroup
	turns.Add(1)
	go func() {
		defer turns.Done()
		s.turnLoop(turnCtx)
	}()
	defer func() {
		stopTurns()
		turns.Wait()
	}()

	return s.audioLoop(ctx, b, endpointer)
}

// audioLoop relays participant audio through endpointing and transcription
// and watches for terminal conditions.
func (s *Session) audioLoop(ctx context.Context, b *bridge.Bridge, endpointer *voice.Endpointer) error {
	var transcriptDeadline <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-b.Done():
			s.logger.Error("bridge went fatal, ending session", "error", b.Err())
			return b.Err()

		case chunk, ok := <-s.deps.Room.AudioIn():
			if !ok {
				s.logger.Info("participant audio ended")
				return nil
			}
			if err := s.deps.Transcriber.Feed(chunk); err != nil {
				s.logger.Warn("transcriber feed failed", "error", err)
			}
			event, err := endpointer.Process(chunk, time.Now())
			if err != nil {
				s.logger.Warn("endpointing failed", "error", err)
				continue
			}
			switch event {
			case voice.EventSpeechStart:
				s.interrupt()
			case voice.EventEndOfTurn:
				if err := s.deps.Transcriber.Flush(); err != nil {
					s.logger.Warn("transcriber flush failed", "error", err)
					continue
				}
				transcriptDeadline = time.After(s.cfg.Endpoint.MaxDelay)
			}

		case transcript, ok := <-s.deps.Transcriber.Results():
			if !ok {
				return nil
			}
			if !transcript.Final || transcript.Text == "" {
				continue
			}
			transcriptDeadline = nil
			select {
			case s.utterances <- transcript.Text:
			default:
				s.logger.Warn("utterance dropped, turn queue full")
			}

		case <-transcriptDeadline:
			transcriptDeadline = nil
			s.logger.Warn("no transcript after end of turn")
		}
	}
}

// turnLoop speaks the greeting, then serializes turns so utterances reach
// the remote in the order they were finalized.
func (s *Session) turnLoop(ctx context.Context) {
	if s.cfg.Greeting != "" {
		s.speak(ctx, voice.TextStream(s.cfg.Greeting))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case text, ok := <-s.utterances:
			if !ok {
				return
			}
			s.takeTurn(ctx, text)
		}
	}
}

// takeTurn exchanges one utterance with the remote and speaks the reply.
func (s *Session) takeTurn(ctx context.Context, text string) {
	s.mu.Lock()
	b := s.bridge
	priorContext := make([]voice.Message, len(s.history))
	copy(priorContext, s.history)
	s.history = append(s.history, voice.Message{Role: voice.RoleUser, Content: text})
	s.mu.Unlock()

	s.logger.Debug("taking turn", "utterance_len", len(text))

	stream, err := b.Reply(ctx, &voice.Turn{Utterance: text, Context: priorContext})
	if err != nil {
		switch {
		case errors.Is(err, voice.ErrInterrupted):
			s.logger.Info("turn interrupted before reply")
		case errors.Is(err, bridge.ErrFatal):
			// The audio loop observes the fatal transition.
		default:
			s.logger.Error("turn failed", "error", err)
		}
		return
	}

	recorder := &recordingStream{inner: stream}
	s.speak(ctx, recorder)

	if reply := recorder.Text(); reply != "" {
		s.mu.Lock()
		s.history = append(s.history, voice.Message{Role: voice.RoleAssistant, Content: reply})
		s.mu.Unlock()
	}
}

// speak plays a fragment stream through the synthesizer. The stored cancel
// makes it interruptible from the audio loop.
func (s *Session) speak(ctx context.Context, stream voice.FragmentStream) {
	speakCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.speakCancel = cancel
	s.mu.Unlock()

	err := s.deps.Synthesizer.Speak(speakCtx, stream)

	s.mu.Lock()
	s.speakCancel = nil
	s.mu.Unlock()
	cancel()

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, voice.ErrInterrupted) {
			s.logger.Info("speech interrupted")
			return
		}
		s.logger.Warn("speech failed", "error", err)
	}
}

// interrupt stops agent speech and cancels the in-flight remote turn when
// the user starts speaking over it.
func (s *Session) interrupt() {
	s.mu.Lock()
	cancel := s.speakCancel
	b := s.bridge
	s.mu.Unlock()

	if cancel != nil {
		s.logger.Debug("user barge-in, stopping speech")
		cancel()
	}
	if b != nil {
		b.Interrupt()
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.logger.Debug("state changed", "state", state.String())
}

func (s *Session) end() {
	s.setState(StateEnded)
	s.deps.Transcriber.Close()
	s.deps.Synthesizer.Close()
	s.deps.Room.Close()
	s.logger.Info("session ended")
}

// recordingStream accumulates relayed text so the reply can join the
// dialogue context of later turns.
type recordingStream struct {
	inner voice.FragmentStream

	mu   sync.Mutex
	text []byte
}

func (r *recordingStream) Recv() (*voice.Fragment, error) {
	frag, err := r.inner.Recv()
	if err != nil {
		return nil, err
	}
	if frag.Text != "" {
		r.mu.Lock()
		r.text = append(r.text, frag.Text...)
		r.mu.Unlock()
	}
	return frag, nil
}

func (r *recordingStream) Close() error {
	return r.inner.Close()
}

func (r *recordingStream) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.text)
}

func (s *Session) bridgeOptions() []bridge.Option {
	opts := []bridge.Option{bridge.WithLogger(s.logger)}
	return append(opts, s.cfg.BridgeOptions...)
}
