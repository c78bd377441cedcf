package voice

import (
	"testing"
	"time"

	"github.com/voicebridge/voicebridge/pkg/audio"
	"github.com/voicebridge/voicebridge/pkg/vad"
)

func chunk() audio.Chunk {
	return audio.Chunk{Samples: make([]int16, 480), SampleRate: 16000}
}

func TestEndpointerTurnCycle(t *testing.T) {
	engine := vad.NewMockEngine(
		vad.Result{IsSpeech: true, Confidence: 0.9},
		vad.Result{IsSpeech: true, Confidence: 0.9},
		vad.Result{IsSpeech: false},
	)
	ep, err := NewEndpointer(engine, DefaultEndpointConfig(), nil)
	if err != nil {
		t.Fatalf("NewEndpointer failed: %v", err)
	}

	now := time.Now()

	ev, err := ep.Process(chunk(), now)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if ev != EventSpeechStart {
		t.Fatalf("expected speech start, got %v", ev)
	}
	if !ep.Speaking() {
		t.Error("expected Speaking true during speech")
	}

	ev, err = ep.Process(chunk(), now.Add(30*time.Millisecond))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if ev != EventNone {
		t.Fatalf("continued speech should be quiet, got %v", ev)
	}

	ev, err = ep.Process(chunk(), now.Add(60*time.Millisecond))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if ev != EventSpeechEnd {
		t.Fatalf("expected speech end, got %v", ev)
	}

	// Silence shorter than the minimum delay does not end the turn.
	ev, err = ep.Process(chunk(), now.Add(200*time.Millisecond))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if ev != EventNone {
		t.Fatalf("expected no event before min delay, got %v", ev)
	}

	ev, err = ep.Process(chunk(), now.Add(60*time.Millisecond+DefaultMinEndpointingDelay))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if ev != EventEndOfTurn {
		t.Fatalf("expected end of turn, got %v", ev)
	}

	// End of turn fires once.
	ev, err = ep.Process(chunk(), now.Add(2*DefaultMinEndpointingDelay))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if ev != EventNone {
		t.Fatalf("end of turn fired twice: %v", ev)
	}
}

func TestEndpointerResumedSpeechDefersEndOfTurn(t *testing.T) {
	engine := vad.NewMockEngine(
		vad.Result{IsSpeech: true, Confidence: 0.9},
		vad.Result{IsSpeech: false},
		vad.Result{IsSpeech: true, Confidence: 0.9},
		vad.Result{IsSpeech: false},
	)
	ep, err := NewEndpointer(engine, DefaultEndpointConfig(), nil)
	if err != nil {
		t.Fatalf("NewEndpointer failed: %v", err)
	}

	now := time.Now()
	if _, err := ep.Process(chunk(), now); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if _, err := ep.Process(chunk(), now.Add(100*time.Millisecond)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	// The user resumes before the minimum delay elapses.
	ev, err := ep.Process(chunk(), now.Add(300*time.Millisecond))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if ev != EventSpeechStart {
		t.Fatalf("expected new speech start, got %v", ev)
	}

	if _, err := ep.Process(chunk(), now.Add(400*time.Millisecond)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	// Silence is measured from the resumed speech, not the first pause.
	ev, err = ep.Process(chunk(), now.Add(700*time.Millisecond))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if ev != EventNone {
		t.Fatalf("expected no end of turn yet, got %v", ev)
	}
}

func TestEndpointerReset(t *testing.T) {
	engine := vad.NewMockEngine(vad.Result{IsSpeech: true, Confidence: 0.9})
	ep, err := NewEndpointer(engine, DefaultEndpointConfig(), nil)
	if err != nil {
		t.Fatalf("NewEndpointer failed: %v", err)
	}

	if _, err := ep.Process(chunk(), time.Now()); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if err := ep.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if ep.Speaking() {
		t.Error("expected Speaking false after reset")
	}
	if engine.ResetCount() != 1 {
		t.Errorf("expected engine reset once, got %d", engine.ResetCount())
	}
}

func TestEndpointerRejectsBadConfig(t *testing.T) {
	engine := vad.NewMockEngine()
	cfg := EndpointConfig{MinDelay: time.Second, MaxDelay: time.Millisecond}
	if _, err := NewEndpointer(engine, cfg, nil); err == nil {
		t.Error("expected error for max delay below min delay")
	}
}
