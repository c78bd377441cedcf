package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voicebridge/voicebridge/pkg/audio"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{URL: "ws://localhost:8443", Name: "call-1"}, false},
		{"missing url", Config{Name: "call-1"}, true},
		{"missing room", Config{URL: "ws://localhost:8443"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{URL: "ws://localhost:8443", Name: "call-1"}
	cfg.applyDefaults()

	if cfg.HandshakeTimeout != DefaultHandshakeTimeout {
		t.Errorf("handshake timeout = %v, want %v", cfg.HandshakeTimeout, DefaultHandshakeTimeout)
	}
	if cfg.ConnectTimeout != DefaultConnectTimeout {
		t.Errorf("connect timeout = %v, want %v", cfg.ConnectTimeout, DefaultConnectTimeout)
	}
	if cfg.Identity != "agent" {
		t.Errorf("identity = %q, want agent", cfg.Identity)
	}
	if cfg.Logger == nil {
		t.Error("logger should default")
	}
}

func TestNewWebRTCRoomRejectsBadConfig(t *testing.T) {
	if _, err := NewWebRTCRoom("", "call-1", ""); err == nil {
		t.Error("expected error for empty URL")
	}
}

func TestMockRoomParticipant(t *testing.T) {
	m := NewMockRoom("caller-1", `{"thread_id":"conv-42"}`)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !m.Connected() {
		t.Error("expected connected")
	}

	p, err := m.WaitForParticipant(context.Background())
	if err != nil {
		t.Fatalf("WaitForParticipant failed: %v", err)
	}
	if p.Identity != "caller-1" {
		t.Errorf("identity = %q", p.Identity)
	}
	if p.Metadata != `{"thread_id":"conv-42"}` {
		t.Errorf("metadata = %q", p.Metadata)
	}
}

func TestMockRoomNoParticipant(t *testing.T) {
	m := NewMockRoom("", "")
	m.Joined = nil

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.WaitForParticipant(ctx)
	if !errors.Is(err, ErrNoParticipant) {
		t.Errorf("expected ErrNoParticipant, got %v", err)
	}
}

func TestMockRoomAudioFlow(t *testing.T) {
	m := NewMockRoom("caller-1", "")

	chunk := audio.Chunk{Samples: make([]int16, 960), SampleRate: 48000}
	m.PushAudio(chunk)
	m.EndAudio()

	var received int
	for range m.AudioIn() {
		received++
	}
	if received != 1 {
		t.Errorf("received %d chunks, want 1", received)
	}

	if err := m.WriteAudio(context.Background(), chunk); err != nil {
		t.Fatalf("WriteAudio failed: %v", err)
	}
	if len(m.Written()) != 1 {
		t.Errorf("written %d chunks, want 1", len(m.Written()))
	}

	m.Close()
	if err := m.WriteAudio(context.Background(), chunk); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}
}
