package bus

import "time"

// Event represents a domain event published on the bus. Kinds are
// dot-namespaced: "scan.*" for orchestrator progress, "chat.*" for per-chat
// outcomes, "contact.*" for persistence, "session.*" for runtime state.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
