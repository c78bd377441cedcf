package room

import (
	"context"
	"sync"

	"github.com/voicebridge/voicebridge/pkg/audio"
)

// MockRoom is a test double for Room. Audio fed with PushAudio appears on
// AudioIn; audio written by the session is recorded.
type MockRoom struct {
	// Joined, when set, is returned by WaitForParticipant.
	Joined *Participant

	// ConnectErr, when set, fails Connect.
	ConnectErr error

	mu        sync.Mutex
	in        chan audio.Chunk
	written   []audio.Chunk
	connected bool
	closed    bool
}

// NewMockRoom creates a room whose participant has the given metadata.
func NewMockRoom(identity, metadata string) *MockRoom {
	return &MockRoom{
		Joined: &Participant{Identity: identity, Metadata: metadata},
		in:     make(chan audio.Chunk, 64),
	}
}

func (m *MockRoom) Connect(ctx context.Context) error {
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

func (m *MockRoom) WaitForParticipant(ctx context.Context) (*Participant, error) {
	if m.Joined == nil {
		<-ctx.Done()
		return nil, ErrNoParticipant
	}
	return m.Joined, nil
}

func (m *MockRoom) AudioIn() <-chan audio.Chunk {
	return m.in
}

func (m *MockRoom) WriteAudio(ctx context.Context, chunk audio.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.written = append(m.written, chunk)
	return nil
}

// PushAudio feeds a chunk to the session as if the participant spoke.
func (m *MockRoom) PushAudio(chunk audio.Chunk) {
	m.in <- chunk
}

// EndAudio closes the inbound audio stream.
func (m *MockRoom) EndAudio() {
	close(m.in)
}

// Written returns the chunks the session played to the room.
func (m *MockRoom) Written() []audio.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audio.Chunk, len(m.written))
	copy(out, m.written)
	return out
}

// Connected reports whether Connect succeeded.
func (m *MockRoom) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockRoom) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Room = (*MockRoom)(nil)
