package graph

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
)

// sseStream implements Stream for server-sent event responses.
type sseStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	reader *bufio.Reader
	body   io.ReadCloser

	mu     sync.Mutex
	closed bool
	done   bool
}

func newSSEStream(ctx context.Context, cancel context.CancelFunc, body io.ReadCloser) *sseStream {
	return &sseStream{
		ctx:    ctx,
		cancel: cancel,
		reader: bufio.NewReader(body),
		body:   body,
	}
}

// sseEvent is the wire format of one streamed fragment.
type sseEvent struct {
	Content  string `json:"content"`
	ThreadID string `json:"thread_id"`
}

// Recv returns the next fragment in emission order.
func (s *sseStream) Recv() (*Fragment, error) {
	s.mu.Lock()
	closed, done := s.closed, s.done
	s.mu.Unlock()

	if closed {
		return nil, ErrStreamClosed
	}
	if done {
		return &Fragment{Done: true}, nil
	}

	for {
		line, err := s.reader.ReadString('\n')
		if err == io.EOF {
			s.finish()
			return &Fragment{Done: true}, nil
		}
		if err != nil {
			// A cancelled turn surfaces as the context error, not a
			// protocol failure.
			if s.ctx.Err() != nil {
				return nil, s.ctx.Err()
			}
			return nil, &ProtocolError{Detail: "read stream", Err: err}
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			s.finish()
			return &Fragment{Done: true}, nil
		}

		var event sseEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return nil, &ProtocolError{Detail: "decode event", Err: err}
		}

		return &Fragment{Text: event.Content, ThreadID: event.ThreadID}, nil
	}
}

// Close stops the stream and releases the connection promptly.
func (s *sseStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	return s.body.Close()
}

func (s *sseStream) finish() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
	s.cancel()
	s.body.Close()
}
