package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/voicebridge/voicebridge/pkg/audio"
	"github.com/voicebridge/voicebridge/pkg/voice"
)

// HTTPSynthesizer implements voice.Synthesizer against an HTTP speech
// service. Each reply fragment is synthesized as it arrives and played
// into the sink, so speech starts before the full reply is known.
type HTTPSynthesizer struct {
	cfg    Config
	client *http.Client
	sink   Sink
	logger *slog.Logger
}

// NewSynthesizer creates a synthesizer that plays into sink.
func NewSynthesizer(baseURL string, sink Sink, opts ...Option) (*HTTPSynthesizer, error) {
	if sink == nil {
		return nil, fmt.Errorf("speech: sink is required")
	}
	cfg := DefaultConfig()
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HTTPSynthesizer{
		cfg:    cfg,
		client: cfg.client(),
		sink:   sink,
		logger: cfg.Logger.With("component", "speech.tts"),
	}, nil
}

// Speak synthesizes fragments in arrival order. Cancelling ctx stops
// synthesis of fragments not yet emitted.
func (s *HTTPSynthesizer) Speak(ctx context.Context, fragments voice.FragmentStream) error {
	defer fragments.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frag, err := fragments.Recv()
		if err != nil {
			return err
		}

		if frag.Text != "" {
			err := s.speakFragment(ctx, frag.Text)
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.IsRetryable() {
				s.logger.Warn("synthesis failed, retrying once", "status", apiErr.StatusCode)
				err = s.speakFragment(ctx, frag.Text)
			}
			if err != nil {
				return err
			}
		}
		if frag.Done {
			return nil
		}
	}
}

func (s *HTTPSynthesizer) speakFragment(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"text":        text,
		"voice":       s.cfg.Voice,
		"sample_rate": s.cfg.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("speech: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.BaseURL+"/v1/synthesize", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("speech: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/pcm16")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("speech: synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(msg),
			Endpoint:   "synthesize",
		}
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("speech: read audio: %w", err)
	}

	chunk := audio.Chunk{
		Samples:    audio.BytesToSamples(pcm),
		SampleRate: s.cfg.SampleRate,
	}
	s.logger.Debug("fragment synthesized", "chars", len(text), "duration", chunk.Duration())
	return s.sink.WriteAudio(ctx, chunk)
}

// Close releases resources.
func (s *HTTPSynthesizer) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

var _ voice.Synthesizer = (*HTTPSynthesizer)(nil)
