package model

// Contact is a chat peer. Unread and Preview are derived caches maintained
// by the store, never authoritative on their own.
type Contact struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Title   string `json:"title,omitempty"`
	Online  bool   `json:"online"`
	Unread  int    `json:"unread"`
	Preview string `json:"preview,omitempty"`
}

// Conversation is the append-only message log between the local user and
// one contact. At most one conversation exists per contact id.
type Conversation struct {
	Key             string    `json:"key"`
	ContactID       string    `json:"contact_id"`
	PinnedMessageID string    `json:"pinned_message_id,omitempty"`
	Messages        []Message `json:"messages"`
}

// ConversationKey derives the deterministic key used to locate a contact's
// conversation without search.
func ConversationKey(contactID string) string {
	return "conv:" + contactID
}

// Preferences are the user-scoped settings persisted alongside chat state.
type Preferences struct {
	NotifyEnabled   bool   `json:"notify_enabled"`
	DarkBubbles     bool   `json:"dark_bubbles"`
	ReadReceipts    bool   `json:"read_receipts"`
	ActiveContactID string `json:"active_contact_id,omitempty"`
	LastOpenTab     string `json:"last_open_tab,omitempty"`
}
