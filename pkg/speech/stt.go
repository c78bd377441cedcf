package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/voicebridge/voicebridge/pkg/audio"
	"github.com/voicebridge/voicebridge/pkg/voice"
)

// HTTPTranscriber implements voice.Transcriber against an HTTP speech
// service. Audio accumulates between endpointing boundaries; Flush posts
// the buffered utterance to the transcribe endpoint and emits the result.
type HTTPTranscriber struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	buf     []int16
	results chan voice.Transcript
	started bool
	closed  bool
}

// NewTranscriber creates a transcriber for the service at baseURL.
func NewTranscriber(baseURL string, opts ...Option) (*HTTPTranscriber, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HTTPTranscriber{
		cfg:     cfg,
		client:  cfg.client(),
		logger:  cfg.Logger.With("component", "speech.stt"),
		results: make(chan voice.Transcript, 16),
	}, nil
}

func (t *HTTPTranscriber) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	t.ctx = ctx
	t.started = true
	return nil
}

func (t *HTTPTranscriber) Feed(chunk audio.Chunk) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return ErrNotStarted
	}
	if t.closed {
		return ErrClosed
	}

	samples := chunk.Samples
	if chunk.SampleRate != t.cfg.SampleRate {
		samples = audio.Resample(samples, chunk.SampleRate, t.cfg.SampleRate)
	}
	t.buf = append(t.buf, samples...)
	return nil
}

// Flush transcribes the buffered utterance. The request runs on its own
// goroutine so the audio loop is never blocked on the service.
func (t *HTTPTranscriber) Flush() error {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return ErrNotStarted
	}
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	pcm := t.buf
	t.buf = nil
	ctx := t.ctx
	t.mu.Unlock()

	if len(pcm) == 0 {
		return nil
	}

	go func() {
		text, err := t.transcribe(ctx, pcm)
		if err != nil {
			t.logger.Warn("transcription failed", "error", err)
			return
		}
		if text == "" {
			return
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.closed {
			return
		}
		select {
		case t.results <- voice.Transcript{Text: text, Final: true}:
		default:
			t.logger.Warn("transcript dropped, results channel full")
		}
	}()
	return nil
}

func (t *HTTPTranscriber) transcribe(ctx context.Context, pcm []int16) (string, error) {
	body := audio.SamplesToBytes(pcm)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.cfg.BaseURL+"/v1/transcribe", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("speech: create request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/pcm16")
	req.Header.Set("X-Sample-Rate", strconv.Itoa(t.cfg.SampleRate))
	if t.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("speech: transcribe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(msg),
			Endpoint:   "transcribe",
		}
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("speech: decode transcript: %w", err)
	}

	t.logger.Debug("utterance transcribed",
		"samples", len(pcm), "text_len", len(result.Text))
	return result.Text, nil
}

func (t *HTTPTranscriber) Results() <-chan voice.Transcript {
	return t.results
}

func (t *HTTPTranscriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.results)
	}
	return nil
}

var _ voice.Transcriber = (*HTTPTranscriber)(nil)
