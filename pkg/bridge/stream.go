package bridge

import (
	"context"
	"errors"

	"github.com/voicebridge/voicebridge/pkg/graph"
	"github.com/voicebridge/voicebridge/pkg/voice"
)

// replyStream relays remote fragments to the voice pipeline in arrival
// order. It adopts a remote-assigned thread off the first fragment and
// translates stream termination into bridge state transitions.
type replyStream struct {
	bridge *Bridge
	ctx    context.Context
	cancel context.CancelFunc
	inner  graph.Stream

	delivered bool
	finished  bool
}

func (s *replyStream) Recv() (*voice.Fragment, error) {
	if s.finished {
		return nil, voice.ErrStreamClosed
	}

	frag, err := s.inner.Recv()
	if err != nil {
		return s.failed(err)
	}

	if frag.ThreadID != "" {
		s.bridge.adoptThread(frag.ThreadID)
	}

	if frag.Done {
		s.finish()
		s.bridge.turnSucceeded()
		return &voice.Fragment{Text: frag.Text, Done: true}, nil
	}

	if frag.Text != "" {
		s.delivered = true
	}
	return &voice.Fragment{Text: frag.Text}, nil
}

// failed maps a mid-stream error. Interruption is a control event; remote
// failures count toward the threshold. When the failure struck before any
// text was relayed the fallback reply is substituted in place, so the user
// still hears something.
func (s *replyStream) failed(err error) (*voice.Fragment, error) {
	s.finish()

	if s.ctx.Err() != nil || errors.Is(err, context.Canceled) {
		s.bridge.finishTurn()
		s.bridge.logger.Info("turn interrupted mid-stream")
		return nil, voice.ErrInterrupted
	}

	if ferr := s.bridge.countFailure(err); ferr != nil {
		return nil, ferr
	}
	s.bridge.finishTurn()

	if !s.delivered {
		s.bridge.logger.Warn("turn failed, substituting fallback", "error", err)
		return &voice.Fragment{Text: s.bridge.cfg.FallbackText, Done: true}, nil
	}

	// Partial reply already relayed; end the turn instead of splicing in
	// unrelated fallback text.
	s.bridge.logger.Warn("stream failed after partial reply", "error", err)
	return &voice.Fragment{Done: true}, nil
}

func (s *replyStream) Close() error {
	if s.finished {
		return nil
	}
	s.finish()
	s.bridge.finishTurn()
	return nil
}

func (s *replyStream) finish() {
	s.finished = true
	s.cancel()
	s.inner.Close()
}

var _ voice.FragmentStream = (*replyStream)(nil)
