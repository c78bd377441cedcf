// Package thread models the conversation identity that correlates a voice
// session with dialogue state held by the remote graph service.
//
// An Identity is either present (an opaque string to reuse on every turn) or
// absent, in which case the remote service allocates one on first invocation.
// Presence is part of the value: an absent identity is distinguishable from
// an empty string, and requests must omit the identifier entirely rather than
// send a null or empty value.
package thread

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// Identity is an opaque key correlating a session with remote dialogue state.
// The zero value is the absent identity.
type Identity struct {
	id      string
	present bool
}

// None returns the absent identity, signalling that the remote service
// should allocate a new conversation.
func None() Identity {
	return Identity{}
}

// FromID returns an identity wrapping a known identifier.
// An empty id yields the absent identity.
func FromID(id string) Identity {
	if id == "" {
		return Identity{}
	}
	return Identity{id: id, present: true}
}

// FromMetadata resolves an identity from participant-supplied session metadata.
// JSON metadata yields the value of its "thread_id" field; plain-string
// metadata is taken as the identifier itself. Absent or empty metadata, and
// JSON without a usable thread_id, propagate as the absent identity; an
// identifier is never fabricated here.
func FromMetadata(metadata string, logger *slog.Logger) Identity {
	if logger == nil {
		logger = slog.Default()
	}

	if metadata == "" {
		logger.Info("no thread id in metadata, remote service will allocate one")
		return None()
	}

	if strings.HasPrefix(strings.TrimSpace(metadata), "{") {
		var fields struct {
			ThreadID string `json:"thread_id"`
		}
		if err := json.Unmarshal([]byte(metadata), &fields); err != nil {
			logger.Warn("malformed metadata, remote service will allocate a thread", "error", err)
			return None()
		}
		if fields.ThreadID == "" {
			logger.Info("metadata carries no thread id, remote service will allocate one")
			return None()
		}
		logger.Info("using thread id from metadata", "thread_id", fields.ThreadID)
		return FromID(fields.ThreadID)
	}

	logger.Info("using thread id from metadata", "thread_id", metadata)
	return FromID(metadata)
}

// Present reports whether an identifier has been established.
func (i Identity) Present() bool {
	return i.present
}

// ID returns the identifier and whether it is present.
func (i Identity) ID() (string, bool) {
	return i.id, i.present
}

// String returns the identifier, or "new" when absent.
// Intended for logging; use ID for request construction.
func (i Identity) String() string {
	if !i.present {
		return "new"
	}
	return i.id
}
