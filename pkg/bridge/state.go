package bridge

// State is the bridge's turn-exchange state.
type State int

const (
	// StateIdle means no turn is in flight.
	StateIdle State = iota

	// StateAwaitingReply means a turn was sent and no fragment has
	// arrived yet.
	StateAwaitingReply

	// StateStreaming means reply fragments are being relayed.
	StateStreaming

	// StateFatal means the bridge has given up and the session should
	// end.
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingReply:
		return "awaiting_reply"
	case StateStreaming:
		return "streaming"
	case StateFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
