package dispatch

import (
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.WorkerCount() != 0 {
		t.Error("WorkerCount should be 0 initially")
	}
}

func TestGetStats(t *testing.T) {
	hub := NewHub(nil)

	stats := hub.GetStats()
	if stats.WorkerCount != 0 {
		t.Error("WorkerCount should be 0")
	}
	if stats.MessagesReceived != 0 {
		t.Error("MessagesReceived should be 0")
	}
	if stats.JobsDispatched != 0 {
		t.Error("JobsDispatched should be 0")
	}
}

func TestDispatchNoWorkers(t *testing.T) {
	hub := NewHub(nil)

	_, err := hub.Dispatch(Job{ID: "job-1", RoomURL: "ws://localhost:8443", RoomName: "call-1"})
	if !errors.Is(err, ErrNoWorkers) {
		t.Errorf("expected ErrNoWorkers, got %v", err)
	}
}

func TestPickWorkerPrefersFreeCapacity(t *testing.T) {
	busy := &WorkerConnection{ID: "busy", capacity: 2, active: 2}
	light := &WorkerConnection{ID: "light", capacity: 4, active: 1}
	idle := &WorkerConnection{ID: "idle", capacity: 2, active: 0}

	picked := pickWorker([]*WorkerConnection{busy, light, idle})
	if picked == nil || picked.ID != "light" {
		t.Errorf("expected the worker with most free slots, got %+v", picked)
	}
}

func TestPickWorkerAllFull(t *testing.T) {
	full := &WorkerConnection{ID: "full", capacity: 1, active: 1}

	if picked := pickWorker([]*WorkerConnection{full}); picked != nil {
		t.Errorf("expected nil for saturated workers, got %+v", picked)
	}
}

func TestGetWorkerInfosEmpty(t *testing.T) {
	hub := NewHub(nil)

	if infos := hub.GetWorkerInfos(); len(infos) != 0 {
		t.Errorf("expected no workers, got %d", len(infos))
	}
}

func TestMessageRoundTrip(t *testing.T) {
	msg, err := NewMessage(TypeJob, Job{
		ID:       "job-1",
		RoomURL:  "ws://localhost:8443",
		RoomName: "call-1",
		Metadata: `{"thread_id":"conv-42"}`,
	})
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}
	if msg.Timestamp == 0 {
		t.Error("timestamp should be set")
	}

	data, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}

	parsed, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if parsed.Type != TypeJob {
		t.Errorf("type = %s, want job", parsed.Type)
	}

	var job Job
	if err := parsed.ParseData(&job); err != nil {
		t.Fatalf("ParseData failed: %v", err)
	}
	if job.ID != "job-1" || job.RoomName != "call-1" {
		t.Errorf("job = %+v", job)
	}
	if job.Metadata != `{"thread_id":"conv-42"}` {
		t.Errorf("metadata = %q", job.Metadata)
	}
}

func TestParseMessageMalformed(t *testing.T) {
	if _, err := ParseMessage([]byte("{not json")); err == nil {
		t.Error("expected error for malformed message")
	}
}

func TestServerRoutes(t *testing.T) {
	server := NewServer(nil)

	if server.Hub() == nil {
		t.Fatal("Hub should not be nil")
	}

	// Route registration should not panic on a fresh app either.
	app := fiber.New()
	hub := NewHub(nil)
	hub.RegisterRoutes(app)
	hub.RegisterAPIRoutes(app.Group("/api"))
}
