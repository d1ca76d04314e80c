package store

import "convo/internal/model"

// OpenConversation navigates to a contact's conversation, creating it if
// absent. Every incoming message that is not yet read is marked read and the
// contact's unread counter drops to zero. Also invoked when the view regains
// visibility while this conversation is the open one; the operation is
// idempotent.
func (s *Store) OpenConversation(contactID string) {
	s.mu.Lock()
	s.prefs.ActiveContactID = contactID
	conv := s.ensureConversationLocked(contactID)
	for i := range conv.Messages {
		m := &conv.Messages[i]
		if !m.FromMe() {
			m.Status = m.Status.Advance(model.StatusRead)
		}
	}
	s.recomputeUnreadLocked()
	s.mu.Unlock()

	s.publish("chat.conversation_opened", map[string]string{"contact_id": contactID})
}

// CloseConversation clears the active contact, so later arrivals count as
// unread again.
func (s *Store) CloseConversation() {
	s.mu.Lock()
	s.prefs.ActiveContactID = ""
	s.mu.Unlock()

	s.publish("chat.prefs_updated", nil)
}

// RecomputeUnread re-derives every contact's unread counter from its
// conversation log. Idempotent; safe to call at any time.
func (s *Store) RecomputeUnread() {
	s.mu.Lock()
	s.recomputeUnreadLocked()
	s.mu.Unlock()
}

// recomputeUnreadLocked derives unread counts from the message logs. A
// message counts as unread when its sender is not the local user and its
// status has not reached read. Hidden-for-me messages still count; only
// rendering ignores them.
func (s *Store) recomputeUnreadLocked() {
	// Messages landing in the open conversation are read on arrival.
	if active := s.prefs.ActiveContactID; active != "" {
		if conv, ok := s.convs[model.ConversationKey(active)]; ok {
			for i := range conv.Messages {
				m := &conv.Messages[i]
				if !m.FromMe() {
					m.Status = m.Status.Advance(model.StatusRead)
				}
			}
		}
	}

	for i := range s.contacts {
		c := &s.contacts[i]
		n := 0
		if conv, ok := s.convs[model.ConversationKey(c.ID)]; ok {
			for j := range conv.Messages {
				m := &conv.Messages[j]
				if !m.FromMe() && m.Status != model.StatusRead {
					n++
				}
			}
		}
		c.Unread = n
	}
}
