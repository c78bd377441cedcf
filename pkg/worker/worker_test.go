package worker

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/voicebridge/voicebridge/pkg/dispatch"
	"github.com/voicebridge/voicebridge/pkg/graph"
	"github.com/voicebridge/voicebridge/pkg/room"
	"github.com/voicebridge/voicebridge/pkg/session"
	"github.com/voicebridge/voicebridge/pkg/vad"
	"github.com/voicebridge/voicebridge/pkg/voice"
)

func noopFactory(job dispatch.Job) (*session.Session, error) {
	model := vad.NewModel(nil)
	if err := model.Load(vad.DefaultModelConfig()); err != nil {
		return nil, err
	}
	// The room's audio ends immediately, so the session runs its setup
	// and returns without waiting on a caller.
	mockRoom := room.NewMockRoom("caller", "")
	mockRoom.EndAudio()
	return session.New(session.Deps{
		Room:        mockRoom,
		Invoker:     graph.NewMock(),
		Model:       model,
		Transcriber: voice.NewMockTranscriber(),
		Synthesizer: voice.NewMockSynthesizer(),
	}, session.WithGreeting(""))
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New("", noopFactory); err == nil {
		t.Error("expected error for empty dispatch URL")
	}
	if _, err := New("ws://localhost:9090/ws/worker", nil); err == nil {
		t.Error("expected error for nil factory")
	}
	if _, err := New("ws://localhost:9090/ws/worker", noopFactory, WithMaxSessions(0)); err == nil {
		t.Error("expected error for zero max sessions")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxSessions != DefaultMaxSessions {
		t.Errorf("max sessions = %d, want %d", cfg.MaxSessions, DefaultMaxSessions)
	}
	if cfg.StatusInterval != DefaultStatusInterval {
		t.Errorf("status interval = %v, want %v", cfg.StatusInterval, DefaultStatusInterval)
	}
	if cfg.Name == "" {
		t.Error("name should default")
	}
}

func TestWorkerRegistersAndRunsJob(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping networked test")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	hub := dispatch.NewHub(nil)
	hub.RegisterRoutes(app)
	go app.Listener(ln)
	defer app.Shutdown()
	time.Sleep(100 * time.Millisecond)

	var built atomic.Int32
	factory := func(job dispatch.Job) (*session.Session, error) {
		built.Add(1)
		return noopFactory(job)
	}

	url := "ws://" + ln.Addr().String() + "/ws/worker"
	w, err := New(url, factory, WithName("test-worker"), WithMaxSessions(2))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- w.Run(ctx) }()

	// Wait for registration.
	deadline := time.After(5 * time.Second)
	for hub.WorkerCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("worker never registered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if _, err := hub.Dispatch(dispatch.Job{
		ID:       "job-1",
		RoomURL:  "ws://localhost:8443",
		RoomName: "call-1",
	}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	for built.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never reached the worker")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not drain")
	}
}
