package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/voicebridge/voicebridge/internal/httpc"
)

// Client invokes a remote dialogue graph over HTTP.
// A single Client may be shared across sessions: it holds no per-conversation
// state, and each request carries its own thread identifier.
type Client struct {
	handle Handle
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a client bound to the given graph handle.
func NewClient(handle Handle, opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if handle.Name() == "" {
		return nil, fmt.Errorf("graph: handle requires a graph name")
	}
	if handle.BaseURL() == "" {
		return nil, fmt.Errorf("graph: handle requires a base URL")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		// Zero overall timeout: streamed replies outlive any fixed request
		// deadline, and per-call deadlines come from the caller's context.
		hc = httpc.NewClient(0)
	}

	return &Client{
		handle: handle,
		config: cfg,
		http:   hc,
		logger: cfg.Logger.With("component", "graph.client", "graph", handle.Name()),
	}, nil
}

// Handle returns the graph handle this client is bound to.
func (c *Client) Handle() Handle {
	return c.handle
}

// Invoke runs one turn against the remote graph.
//
// The request payload is {input, config:{configurable:{thread_id}}}, with the
// thread_id key omitted entirely when the identity is absent; the remote
// service branches on key presence. The response is surfaced as a Stream
// whether the service answered in one JSON document or as an SSE stream.
//
// Failures are never retried here: connection failures surface as
// ErrRemoteUnavailable, an unknown graph as ErrGraphNotFound, and unexpected
// response shapes as ProtocolError, all for the bridge to handle.
func (c *Client) Invoke(ctx context.Context, req *TurnRequest) (Stream, error) {
	body, err := json.Marshal(buildPayload(req))
	if err != nil {
		return nil, &ProtocolError{Detail: "marshal request", Err: err}
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, c.config.StreamTimeout)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.handle.URL(), bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, &ProtocolError{Detail: "create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream, application/json")

	if c.config.TokenSource != nil {
		tok, err := c.config.TokenSource.Token()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("%w: token: %v", ErrRemoteUnavailable, err)
		}
		tok.SetAuthHeader(httpReq)
	}

	// Timeout bounds the wait for response headers; StreamTimeout bounds
	// the whole exchange once the body starts streaming.
	headerTimer := time.AfterFunc(c.config.Timeout, cancel)
	resp, err := c.http.Do(httpReq)
	headerTimer.Stop()
	if err != nil {
		cancel()
		if parent.Err() != nil {
			return nil, parent.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer cancel()
		defer resp.Body.Close()
		return nil, c.statusError(resp)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch mediaType {
	case "text/event-stream":
		c.logger.Debug("streamed response", "thread_id", req.Thread.String())
		return newSSEStream(ctx, cancel, resp.Body), nil
	case "application/json":
		defer cancel()
		defer resp.Body.Close()
		c.logger.Debug("single-shot response", "thread_id", req.Thread.String())
		return c.decodeSingleShot(resp.Body)
	default:
		cancel()
		resp.Body.Close()
		return nil, &ProtocolError{Detail: fmt.Sprintf("unexpected content type %q", mediaType)}
	}
}

// Health checks remote service connectivity.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.handle.BaseURL()+"/ok", nil)
	if err != nil {
		return &ProtocolError{Detail: "create request", Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health status %d", ErrRemoteUnavailable, resp.StatusCode)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// buildPayload constructs the invocation payload. The configurable block is
// only attached when a thread identity exists so absence stays distinguishable
// from an empty value on the wire.
func buildPayload(req *TurnRequest) map[string]any {
	config := map[string]any{}
	if id, ok := req.Thread.ID(); ok {
		config["configurable"] = map[string]any{"thread_id": id}
	}

	return map[string]any{
		"input":  map[string]any{"messages": req.Input},
		"config": config,
	}
}

// statusError maps a non-200 response onto the failure taxonomy.
func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	remote := &RemoteError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
		Graph:      c.handle.Name(),
	}

	switch {
	case remote.IsNotFound():
		return fmt.Errorf("%w: %v", ErrGraphNotFound, remote)
	case remote.IsServerError():
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, remote)
	default:
		return &ProtocolError{Detail: "unexpected status", Err: remote}
	}
}

// decodeSingleShot converts a completed JSON reply into a one-fragment stream.
func (c *Client) decodeSingleShot(r io.Reader) (Stream, error) {
	var result struct {
		Output *struct {
			Content string `json:"content"`
		} `json:"output"`
		ThreadID string `json:"thread_id"`
	}
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, &ProtocolError{Detail: "decode response", Err: err}
	}
	if result.Output == nil {
		return nil, &ProtocolError{Detail: "response missing output"}
	}

	return &singleStream{
		fragment: Fragment{Text: result.Output.Content, ThreadID: result.ThreadID},
	}, nil
}

// singleStream yields one fragment then terminates.
type singleStream struct {
	fragment Fragment
	sent     bool
	closed   bool
}

func (s *singleStream) Recv() (*Fragment, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.sent {
		return &Fragment{Done: true}, nil
	}
	s.sent = true
	f := s.fragment
	return &f, nil
}

func (s *singleStream) Close() error {
	s.closed = true
	return nil
}

// Verify Client implements Invoker at compile time.
var _ Invoker = (*Client)(nil)
