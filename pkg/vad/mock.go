package vad

import "sync"

// MockEngine is a scripted Engine for tests. Each ProcessChunk call returns
// the next scripted result; the script's last entry repeats once exhausted.
type MockEngine struct {
	mu     sync.Mutex
	script []Result
	next   int
	calls  int
	resets int
	closed bool
}

// NewMockEngine returns an engine replaying the given results in order.
func NewMockEngine(script ...Result) *MockEngine {
	return &MockEngine{script: script}
}

func (m *MockEngine) ProcessChunk(pcm []byte, sampleRate int) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Result{}, ErrClosed
	}
	m.calls++
	if len(m.script) == 0 {
		return Result{}, nil
	}
	r := m.script[m.next]
	if m.next < len(m.script)-1 {
		m.next++
	}
	return r, nil
}

func (m *MockEngine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	m.next = 0
	return nil
}

func (m *MockEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// CallCount returns how many chunks were processed.
func (m *MockEngine) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ResetCount returns how many times Reset was called.
func (m *MockEngine) ResetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

var _ Engine = (*MockEngine)(nil)
