package bus

import "time"

// Event represents a domain event published on the bus.
//
// Kinds are dot-namespaced: "chat.message_appended", "chat.message_updated",
// "chat.contact_updated", "chat.conversation_opened", "chat.prefs_updated",
// "call.state_changed", "call.removed".
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
