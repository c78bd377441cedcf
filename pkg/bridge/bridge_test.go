package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voicebridge/voicebridge/pkg/graph"
	"github.com/voicebridge/voicebridge/pkg/thread"
	"github.com/voicebridge/voicebridge/pkg/voice"
)

func userTurn(text string) *voice.Turn {
	return &voice.Turn{Utterance: text}
}

// collect drains a fragment stream and returns the text fragments in order.
func collect(t *testing.T, stream voice.FragmentStream) []string {
	t.Helper()
	var out []string
	for {
		frag, err := stream.Recv()
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		if frag.Text != "" {
			out = append(out, frag.Text)
		}
		if frag.Done {
			return out
		}
	}
}

func TestReplyCarriesResolvedThread(t *testing.T) {
	mock := graph.NewMock(graph.Fragment{Text: "done", ThreadID: "conv-42"})
	b, err := New(mock, thread.FromID("conv-42"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		stream, err := b.Reply(context.Background(), userTurn("add milk"))
		if err != nil {
			t.Fatalf("Reply %d failed: %v", i, err)
		}
		collect(t, stream)
	}

	for i, req := range mock.Requests() {
		id, ok := req.Thread.ID()
		if !ok || id != "conv-42" {
			t.Errorf("request %d: expected thread conv-42, got %q present=%v", i, id, ok)
		}
	}
}

func TestThreadAdoptedFromFirstReply(t *testing.T) {
	mock := graph.NewMock(graph.Fragment{Text: "hi", ThreadID: "conv-99"})
	b, err := New(mock, thread.None())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	stream, err := b.Reply(context.Background(), userTurn("hello"))
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	collect(t, stream)

	if id, ok := b.Thread().ID(); !ok || id != "conv-99" {
		t.Fatalf("expected adopted thread conv-99, got %q present=%v", id, ok)
	}

	// First request omitted the thread; the second carries the adopted one.
	reqs := mock.Requests()
	if reqs[0].Thread.Present() {
		t.Error("first request should not carry a thread")
	}

	stream, err = b.Reply(context.Background(), userTurn("what's on my list"))
	if err != nil {
		t.Fatalf("second Reply failed: %v", err)
	}
	collect(t, stream)

	reqs = mock.Requests()
	if id, ok := reqs[1].Thread.ID(); !ok || id != "conv-99" {
		t.Errorf("second request: expected conv-99, got %q present=%v", id, ok)
	}
}

func TestAdoptedThreadIsImmutable(t *testing.T) {
	calls := 0
	mock := &graph.Mock{}
	mock.InvokeFunc = func(ctx context.Context, req *graph.TurnRequest) (graph.Stream, error) {
		calls++
		if calls == 1 {
			return graph.NewScriptedStream(graph.Fragment{Text: "a", ThreadID: "conv-1"}), nil
		}
		return graph.NewScriptedStream(graph.Fragment{Text: "b", ThreadID: "conv-2"}), nil
	}

	b, err := New(mock, thread.None())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		stream, err := b.Reply(context.Background(), userTurn("hi"))
		if err != nil {
			t.Fatalf("Reply %d failed: %v", i, err)
		}
		collect(t, stream)
	}

	if id, _ := b.Thread().ID(); id != "conv-1" {
		t.Errorf("adopted thread changed to %q, want conv-1", id)
	}
}

func TestFragmentOrderPreserved(t *testing.T) {
	mock := graph.NewMock(
		graph.Fragment{Text: "one "},
		graph.Fragment{Text: "two "},
		graph.Fragment{Text: "three"},
	)
	b, err := New(mock, thread.None())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	stream, err := b.Reply(context.Background(), userTurn("count"))
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}

	got := collect(t, stream)
	want := []string{"one ", "two ", "three"}
	if len(got) != len(want) {
		t.Fatalf("got %d fragments, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fragment %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSingleTurnInFlight(t *testing.T) {
	release := make(chan struct{})
	mock := &graph.Mock{}
	mock.InvokeFunc = func(ctx context.Context, req *graph.TurnRequest) (graph.Stream, error) {
		return graph.NewGatedStream(ctx, release, graph.Fragment{Text: "slow"}), nil
	}

	b, err := New(mock, thread.None())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	stream, err := b.Reply(context.Background(), userTurn("first"))
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}

	if _, err := b.Reply(context.Background(), userTurn("second")); !errors.Is(err, voice.ErrTurnInFlight) {
		t.Errorf("expected ErrTurnInFlight, got %v", err)
	}

	close(release)
	collect(t, stream)

	// Turn finished; a new reply is accepted.
	if _, err := b.Reply(context.Background(), userTurn("third")); err != nil {
		t.Errorf("Reply after completion failed: %v", err)
	}
}

func TestTransientFailureYieldsSingleFallback(t *testing.T) {
	calls := 0
	mock := &graph.Mock{}
	mock.InvokeFunc = func(ctx context.Context, req *graph.TurnRequest) (graph.Stream, error) {
		calls++
		if calls == 1 {
			return nil, graph.ErrRemoteUnavailable
		}
		return graph.NewScriptedStream(graph.Fragment{Text: "back online"}), nil
	}

	b, err := New(mock, thread.FromID("conv-7"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	stream, err := b.Reply(context.Background(), userTurn("hello"))
	if err != nil {
		t.Fatalf("Reply should substitute fallback, got error: %v", err)
	}
	got := collect(t, stream)
	if len(got) != 1 || got[0] != DefaultFallbackText {
		t.Fatalf("expected single fallback fragment, got %v", got)
	}
	if b.ConsecutiveFailures() != 1 {
		t.Errorf("expected 1 failure, got %d", b.ConsecutiveFailures())
	}

	// The session continues and a success resets the run.
	stream, err = b.Reply(context.Background(), userTurn("still there?"))
	if err != nil {
		t.Fatalf("Reply after fallback failed: %v", err)
	}
	collect(t, stream)
	if b.ConsecutiveFailures() != 0 {
		t.Errorf("expected failure run reset, got %d", b.ConsecutiveFailures())
	}
}

func TestConsecutiveFailuresGoFatal(t *testing.T) {
	mock := &graph.Mock{}
	mock.InvokeFunc = func(ctx context.Context, req *graph.TurnRequest) (graph.Stream, error) {
		return nil, graph.ErrRemoteUnavailable
	}

	b, err := New(mock, thread.None())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Two failures below the default threshold fall back.
	for i := 0; i < DefaultFailureThreshold-1; i++ {
		stream, err := b.Reply(context.Background(), userTurn("hi"))
		if err != nil {
			t.Fatalf("Reply %d should fall back, got %v", i, err)
		}
		collect(t, stream)
	}

	// The third goes fatal.
	_, err = b.Reply(context.Background(), userTurn("hi"))
	if !errors.Is(err, ErrFatal) {
		t.Fatalf("expected ErrFatal, got %v", err)
	}
	if b.State() != StateFatal {
		t.Errorf("expected fatal state, got %v", b.State())
	}

	select {
	case <-b.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after fatal escalation")
	}

	if _, err := b.Reply(context.Background(), userTurn("hi")); !errors.Is(err, ErrFatal) {
		t.Errorf("Reply after fatal: expected ErrFatal, got %v", err)
	}
}

func TestFailureThresholdConfigurable(t *testing.T) {
	mock := &graph.Mock{}
	mock.InvokeFunc = func(ctx context.Context, req *graph.TurnRequest) (graph.Stream, error) {
		return nil, graph.ErrRemoteUnavailable
	}

	b, err := New(mock, thread.None(), WithFailureThreshold(1))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := b.Reply(context.Background(), userTurn("hi")); !errors.Is(err, ErrFatal) {
		t.Errorf("expected fatal on first failure with threshold 1, got %v", err)
	}
}

func TestGraphNotFoundIsImmediatelyFatal(t *testing.T) {
	mock := &graph.Mock{}
	mock.InvokeFunc = func(ctx context.Context, req *graph.TurnRequest) (graph.Stream, error) {
		return nil, graph.ErrGraphNotFound
	}

	b, err := New(mock, thread.None())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = b.Reply(context.Background(), userTurn("hi"))
	if !errors.Is(err, ErrFatal) {
		t.Fatalf("expected ErrFatal, got %v", err)
	}
	if !errors.Is(b.Err(), ErrFatal) {
		t.Errorf("Err() should report fatal, got %v", b.Err())
	}
}

func TestInterruptCancelsInFlightTurn(t *testing.T) {
	release := make(chan struct{})
	mock := &graph.Mock{}
	mock.InvokeFunc = func(ctx context.Context, req *graph.TurnRequest) (graph.Stream, error) {
		return graph.NewGatedStream(ctx, release, graph.Fragment{Text: "never delivered"}), nil
	}

	b, err := New(mock, thread.FromID("conv-5"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	stream, err := b.Reply(context.Background(), userTurn("long question"))
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}

	b.Interrupt()

	if _, err := stream.Recv(); !errors.Is(err, voice.ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}

	// Interruption is a control event, not a failure.
	if b.ConsecutiveFailures() != 0 {
		t.Errorf("interruption counted as failure: %d", b.ConsecutiveFailures())
	}
	if b.State() != StateIdle {
		t.Errorf("expected idle after interruption, got %v", b.State())
	}

	// The next turn proceeds normally.
	mock.InvokeFunc = func(ctx context.Context, req *graph.TurnRequest) (graph.Stream, error) {
		return graph.NewScriptedStream(graph.Fragment{Text: "ok"}), nil
	}
	stream, err = b.Reply(context.Background(), userTurn("next"))
	if err != nil {
		t.Fatalf("Reply after interrupt failed: %v", err)
	}
	got := collect(t, stream)
	if len(got) != 1 || got[0] != "ok" {
		t.Errorf("unexpected reply after interrupt: %v", got)
	}
}

func TestInterruptBeforeFirstFragment(t *testing.T) {
	mock := &graph.Mock{}
	mock.InvokeFunc = func(ctx context.Context, req *graph.TurnRequest) (graph.Stream, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	b, err := New(mock, thread.None())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := b.Reply(context.Background(), userTurn("hi"))
		done <- err
	}()

	// Wait for the turn to be in flight, then interrupt.
	deadline := time.After(time.Second)
	for b.State() != StateAwaitingReply {
		select {
		case <-deadline:
			t.Fatal("turn never reached awaiting state")
		case <-time.After(time.Millisecond):
		}
	}
	b.Interrupt()

	select {
	case err := <-done:
		if !errors.Is(err, voice.ErrInterrupted) {
			t.Fatalf("expected ErrInterrupted, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Reply did not return after interrupt")
	}

	if b.ConsecutiveFailures() != 0 {
		t.Errorf("interruption counted as failure: %d", b.ConsecutiveFailures())
	}
}

func TestMidStreamFailureFallsBack(t *testing.T) {
	mock := &graph.Mock{}
	mock.InvokeFunc = func(ctx context.Context, req *graph.TurnRequest) (graph.Stream, error) {
		return &failingStream{}, nil
	}

	b, err := New(mock, thread.None())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	stream, err := b.Reply(context.Background(), userTurn("hi"))
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}

	frag, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv should substitute fallback, got %v", err)
	}
	if frag.Text != DefaultFallbackText || !frag.Done {
		t.Errorf("expected terminal fallback fragment, got %+v", frag)
	}
	if b.ConsecutiveFailures() != 1 {
		t.Errorf("expected 1 failure, got %d", b.ConsecutiveFailures())
	}
}

func TestMidStreamFailureAfterPartialReplyEndsTurn(t *testing.T) {
	mock := &graph.Mock{}
	mock.InvokeFunc = func(ctx context.Context, req *graph.TurnRequest) (graph.Stream, error) {
		return &failingStream{fragments: []graph.Fragment{{Text: "partial "}}}, nil
	}

	b, err := New(mock, thread.None())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	stream, err := b.Reply(context.Background(), userTurn("hi"))
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}

	frag, err := stream.Recv()
	if err != nil || frag.Text != "partial " {
		t.Fatalf("expected partial fragment, got %+v err=%v", frag, err)
	}

	frag, err = stream.Recv()
	if err != nil {
		t.Fatalf("expected graceful termination, got %v", err)
	}
	if !frag.Done || frag.Text != "" {
		t.Errorf("expected bare terminal fragment after partial reply, got %+v", frag)
	}
	if b.State() != StateIdle {
		t.Errorf("expected idle, got %v", b.State())
	}
}

// failingStream yields its fragments then errors.
type failingStream struct {
	fragments []graph.Fragment
	pos       int
}

func (s *failingStream) Recv() (*graph.Fragment, error) {
	if s.pos < len(s.fragments) {
		f := s.fragments[s.pos]
		s.pos++
		return &f, nil
	}
	return nil, &graph.ProtocolError{Detail: "connection reset"}
}

func (s *failingStream) Close() error { return nil }
