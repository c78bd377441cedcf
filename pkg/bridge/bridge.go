// Package bridge relays finalized user utterances to a remote dialogue
// graph and hands the reply back to the voice pipeline as a fragment
// stream.
//
// The bridge owns the turn lifecycle for one session: it enforces a single
// in-flight turn, adopts the conversation thread the remote assigns,
// substitutes a fallback reply when a turn fails transiently, and goes
// fatal after too many consecutive failures.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/voicebridge/voicebridge/pkg/graph"
	"github.com/voicebridge/voicebridge/pkg/thread"
	"github.com/voicebridge/voicebridge/pkg/voice"
)

// ErrFatal is returned from Reply once the bridge has given up on the
// remote. Inspect Err for the underlying cause.
var ErrFatal = errors.New("bridge: remote dialogue failed")

// Bridge exchanges turns with a remote dialogue graph on behalf of one
// session. It implements voice.LanguageModel.
type Bridge struct {
	invoker graph.Invoker
	cfg     Config
	logger  *slog.Logger

	mu       sync.Mutex
	state    State
	identity thread.Identity
	failures int
	cancel   context.CancelFunc
	fatalErr error
	done     chan struct{}
}

// New creates a bridge for one session. identity is the thread resolved
// from the participant; when absent, the remote assigns one on the first
// turn and the bridge adopts it.
func New(invoker graph.Invoker, identity thread.Identity, opts ...Option) (*Bridge, error) {
	if invoker == nil {
		return nil, errors.New("bridge: invoker is required")
	}
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Bridge{
		invoker:  invoker,
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "bridge"),
		identity: identity,
		done:     make(chan struct{}),
	}, nil
}

// Reply submits one finalized utterance and returns the reply as a lazy
// fragment stream. Only one turn may be in flight; a second call before
// the previous stream finishes returns voice.ErrTurnInFlight.
//
// Transient remote failures below the failure threshold yield a fallback
// stream instead of an error, so the session keeps going. Interruption of
// the in-flight call surfaces as voice.ErrInterrupted.
func (b *Bridge) Reply(ctx context.Context, turn *voice.Turn) (voice.FragmentStream, error) {
	b.mu.Lock()
	switch {
	case b.state == StateFatal:
		err := b.fatalErr
		b.mu.Unlock()
		return nil, err
	case b.state != StateIdle:
		b.mu.Unlock()
		return nil, voice.ErrTurnInFlight
	}

	callCtx, cancel := context.WithCancel(ctx)
	b.state = StateAwaitingReply
	b.cancel = cancel
	identity := b.identity
	b.mu.Unlock()

	req := &graph.TurnRequest{
		Input:  buildInput(turn),
		Thread: identity,
	}

	b.logger.Debug("sending turn", "thread", identity.String(), "utterance_len", len(turn.Utterance))

	stream, err := b.invoker.Invoke(callCtx, req)
	if err != nil {
		return b.invokeFailed(callCtx, cancel, err)
	}

	b.mu.Lock()
	b.state = StateStreaming
	b.mu.Unlock()

	return &replyStream{bridge: b, ctx: callCtx, cancel: cancel, inner: stream}, nil
}

// Interrupt cancels the in-flight turn, if any. It is a control event and
// does not count toward the failure threshold.
func (b *Bridge) Interrupt() {
	b.mu.Lock()
	cancel := b.cancel
	state := b.state
	b.mu.Unlock()

	if cancel != nil {
		b.logger.Debug("interrupting turn", "state", state.String())
		cancel()
	}
}

// Thread returns the session's thread identity, including one adopted from
// the remote mid-session.
func (b *Bridge) Thread() thread.Identity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.identity
}

// State returns the current turn-exchange state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current failure run length.
func (b *Bridge) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Done is closed when the bridge goes fatal.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Err returns the fatal error, or nil while the bridge is usable.
func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fatalErr
}

// invokeFailed classifies an Invoke error and decides between fallback,
// fatal escalation, and interruption.
func (b *Bridge) invokeFailed(callCtx context.Context, cancel context.CancelFunc, err error) (voice.FragmentStream, error) {
	cancel()

	if callCtx.Err() != nil || errors.Is(err, context.Canceled) {
		b.finishTurn()
		b.logger.Info("turn cancelled before reply")
		return nil, voice.ErrInterrupted
	}

	if errors.Is(err, graph.ErrGraphNotFound) {
		b.goFatal(err)
		return nil, fmt.Errorf("%w: %v", ErrFatal, err)
	}

	return b.transientFailure(err)
}

// transientFailure counts one failure and either escalates or substitutes
// the fallback reply.
func (b *Bridge) transientFailure(err error) (voice.FragmentStream, error) {
	if ferr := b.countFailure(err); ferr != nil {
		return nil, ferr
	}
	b.finishTurn()
	b.logger.Warn("turn failed, substituting fallback", "error", err)
	return voice.TextStream(b.cfg.FallbackText), nil
}

// countFailure extends the failure run and escalates to fatal at the
// threshold. It returns nil while the bridge remains usable.
func (b *Bridge) countFailure(err error) error {
	b.mu.Lock()
	b.failures++
	failures := b.failures
	threshold := b.cfg.FailureThreshold
	b.mu.Unlock()

	if failures < threshold {
		return nil
	}
	b.goFatal(err)
	b.logger.Error("failure threshold reached", "failures", failures, "error", err)
	return fmt.Errorf("%w after %d consecutive failures: %v", ErrFatal, failures, err)
}

// adoptThread records the remote-assigned thread. Adoption happens at most
// once; an identity resolved at session start is never overwritten.
func (b *Bridge) adoptThread(id string) {
	if id == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.identity.Present() {
		return
	}
	b.identity = thread.FromID(id)
	b.logger.Info("adopted thread from remote", "thread_id", id)
}

// finishTurn returns the bridge to idle after a turn ends for any reason
// other than going fatal.
func (b *Bridge) finishTurn() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateFatal {
		return
	}
	b.state = StateIdle
	b.cancel = nil
}

// turnSucceeded resets the failure run after a clean completion.
func (b *Bridge) turnSucceeded() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	if b.state != StateFatal {
		b.state = StateIdle
		b.cancel = nil
	}
}

func (b *Bridge) goFatal(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateFatal {
		return
	}
	b.state = StateFatal
	b.cancel = nil
	b.fatalErr = fmt.Errorf("%w: %v", ErrFatal, err)
	close(b.done)
}

func buildInput(turn *voice.Turn) []graph.Message {
	input := make([]graph.Message, 0, len(turn.Context)+1)
	for _, m := range turn.Context {
		input = append(input, graph.Message{Role: graph.Role(m.Role), Content: m.Content})
	}
	return append(input, graph.Message{Role: graph.RoleUser, Content: turn.Utterance})
}

var _ voice.LanguageModel = (*Bridge)(nil)
