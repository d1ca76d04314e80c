package store

import (
	"sort"

	"convo/internal/model"
)

// SnapshotConversations returns deep copies of every conversation in a
// stable order. Used by the persistence adapter; the snapshot never aliases
// live state.
func (s *Store) SnapshotConversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Conversation, 0, len(s.convs))
	for _, conv := range s.convs {
		out = append(out, copyConversation(conv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
