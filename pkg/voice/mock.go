package voice

import (
	"context"
	"strings"
	"sync"

	"github.com/voicebridge/voicebridge/pkg/audio"
)

// MockTranscriber is a test double for Transcriber. It records fed audio and
// emits scripted transcripts when flushed.
type MockTranscriber struct {
	mu      sync.Mutex
	scripts []string
	next    int
	fed     []audio.Chunk
	results chan Transcript
	started bool
	closed  bool
}

// NewMockTranscriber returns a transcriber that emits the given final
// transcripts, one per Flush call, in order.
func NewMockTranscriber(scripts ...string) *MockTranscriber {
	return &MockTranscriber{
		scripts: scripts,
		results: make(chan Transcript, 16),
	}
}

func (m *MockTranscriber) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return nil
}

func (m *MockTranscriber) Feed(chunk audio.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fed = append(m.fed, chunk)
	return nil
}

func (m *MockTranscriber) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.next < len(m.scripts) {
		m.results <- Transcript{Text: m.scripts[m.next], Final: true}
		m.next++
	}
	return nil
}

func (m *MockTranscriber) Results() <-chan Transcript {
	return m.results
}

func (m *MockTranscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.results)
	}
	return nil
}

// FedChunks returns the audio chunks fed so far.
func (m *MockTranscriber) FedChunks() []audio.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audio.Chunk, len(m.fed))
	copy(out, m.fed)
	return out
}

var _ Transcriber = (*MockTranscriber)(nil)

// MockSynthesizer is a test double for Synthesizer. It drains fragment
// streams into recorded utterances and honors context cancellation
// mid-stream.
type MockSynthesizer struct {
	mu     sync.Mutex
	spoken []string
	closed bool

	// Gate, when set, is received from before each fragment is consumed.
	// Tests use it to hold playback open so an interruption can land.
	Gate chan struct{}
}

func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{}
}

func (m *MockSynthesizer) Speak(ctx context.Context, stream FragmentStream) error {
	defer stream.Close()
	var parts []string
	for {
		if m.Gate != nil {
			select {
			case <-m.Gate:
			case <-ctx.Done():
				m.record(parts)
				return ctx.Err()
			}
		}
		select {
		case <-ctx.Done():
			m.record(parts)
			return ctx.Err()
		default:
		}
		frag, err := stream.Recv()
		if err != nil {
			m.record(parts)
			return err
		}
		if frag.Text != "" {
			parts = append(parts, frag.Text)
		}
		if frag.Done {
			m.record(parts)
			return nil
		}
	}
}

func (m *MockSynthesizer) record(parts []string) {
	if len(parts) == 0 {
		return
	}
	m.mu.Lock()
	m.spoken = append(m.spoken, strings.Join(parts, ""))
	m.mu.Unlock()
}

// Spoken returns the utterances synthesized so far, one entry per Speak
// call that produced text.
func (m *MockSynthesizer) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.spoken))
	copy(out, m.spoken)
	return out
}

func (m *MockSynthesizer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Synthesizer = (*MockSynthesizer)(nil)
