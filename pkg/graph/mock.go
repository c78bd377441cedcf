package graph

import (
	"context"
	"sync"
)

// Mock implements Invoker for testing.
type Mock struct {
	// InvokeFunc is called when Invoke is invoked.
	InvokeFunc func(ctx context.Context, req *TurnRequest) (Stream, error)

	mu       sync.Mutex
	requests []*TurnRequest
}

// NewMock creates a mock that replies with the given fragments on every turn.
func NewMock(fragments ...Fragment) *Mock {
	return &Mock{
		InvokeFunc: func(ctx context.Context, req *TurnRequest) (Stream, error) {
			return NewScriptedStream(fragments...), nil
		},
	}
}

// Invoke calls InvokeFunc and records the request.
func (m *Mock) Invoke(ctx context.Context, req *TurnRequest) (Stream, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, req)
	}
	return nil, ErrRemoteUnavailable
}

// Requests returns all recorded turn requests in order.
func (m *Mock) Requests() []*TurnRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*TurnRequest, len(m.requests))
	copy(result, m.requests)
	return result
}

// CallCount returns the number of invocations.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Reset clears all recorded requests.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// ScriptedStream replays a fixed fragment sequence. It honors context
// cancellation through the blocking variant used by interruption tests.
type ScriptedStream struct {
	mu        sync.Mutex
	fragments []Fragment
	pos       int
	closed    bool

	// gate, when non-nil, is waited on before each Recv returns.
	gate chan struct{}
	ctx  context.Context
}

// NewScriptedStream creates a stream that yields the given fragments then
// terminates.
func NewScriptedStream(fragments ...Fragment) *ScriptedStream {
	return &ScriptedStream{fragments: fragments}
}

// NewGatedStream creates a scripted stream whose Recv blocks until release is
// signalled, or until ctx is cancelled. Useful for exercising interruption of
// an in-flight reply.
func NewGatedStream(ctx context.Context, release chan struct{}, fragments ...Fragment) *ScriptedStream {
	return &ScriptedStream{fragments: fragments, gate: release, ctx: ctx}
}

// Recv returns the next scripted fragment.
func (s *ScriptedStream) Recv() (*Fragment, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-s.ctx.Done():
			return nil, s.ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.pos >= len(s.fragments) {
		return &Fragment{Done: true}, nil
	}

	f := s.fragments[s.pos]
	s.pos++
	return &f, nil
}

// Close marks the stream closed.
func (s *ScriptedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *ScriptedStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Verify Mock implements Invoker at compile time.
var _ Invoker = (*Mock)(nil)
var _ Stream = (*ScriptedStream)(nil)
