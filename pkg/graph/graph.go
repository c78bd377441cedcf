// Package graph provides a client for invoking a named remote dialogue graph
// and streaming back incremental reply text.
//
// The remote service is stateful: each invocation carries a conversation
// thread identifier in its configuration bag, and the service either reuses
// the referenced state or allocates a new thread when the identifier is
// omitted. The client supports both single-shot JSON responses and
// incrementally streamed (SSE) responses; callers consume either through the
// same lazy Stream of fragments.
//
// Example usage:
//
//	handle := graph.NewHandle("todo_agent", "http://localhost:2024")
//	client, _ := graph.NewClient(handle)
//	defer client.Close()
//
//	stream, err := client.Invoke(ctx, &graph.TurnRequest{
//	    Input:  []graph.Message{{Role: graph.RoleUser, Content: "add milk to my list"}},
//	    Thread: thread.FromID("conv-42"),
//	})
package graph

import (
	"context"
	"strings"

	"github.com/voicebridge/voicebridge/pkg/thread"
)

// Handle binds a named remote computation graph to a base URL.
// Immutable for process lifetime; shared read-only across all sessions.
type Handle struct {
	name    string
	baseURL string
}

// NewHandle creates a handle for the named graph at the given base URL.
func NewHandle(name, baseURL string) Handle {
	return Handle{
		name:    name,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Name returns the remote graph name.
func (h Handle) Name() string { return h.name }

// BaseURL returns the remote service base URL.
func (h Handle) BaseURL() string { return h.baseURL }

// URL returns the invocation endpoint for this graph.
func (h Handle) URL() string { return h.baseURL + "/" + h.name }

// Invoker is the capability the turn-exchange bridge needs from this package.
type Invoker interface {
	// Invoke runs one turn against the remote graph and returns a lazy
	// stream of reply fragments. Errors are never retried here; they
	// propagate to the caller for per-turn recovery.
	Invoke(ctx context.Context, req *TurnRequest) (Stream, error)
}

// Stream is an ordered, finite sequence of reply fragments for one turn.
type Stream interface {
	// Recv returns the next fragment. The final fragment has Done set.
	Recv() (*Fragment, error)

	// Close stops the stream and releases the underlying connection.
	Close() error
}

// Fragment is an incremental unit of reply text.
type Fragment struct {
	// Text is the incremental reply content. May be empty on the
	// terminating fragment.
	Text string

	// ThreadID is the conversation identifier the remote service used or
	// assigned, when the response carries one.
	ThreadID string

	// Done is true when the stream is complete.
	Done bool
}

// TurnRequest is one finalized user utterance plus its configuration bag.
type TurnRequest struct {
	// Input is the utterance and any running dialogue context, oldest first.
	Input []Message

	// Thread is the conversation identity. When absent, the thread_id key
	// is omitted from the request entirely so the remote service allocates
	// a new conversation.
	Thread thread.Identity
}

// Message is one entry of dialogue context.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)
