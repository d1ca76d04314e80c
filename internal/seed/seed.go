// Package seed holds the built-in fallback state used when nothing was
// persisted yet or the persisted data cannot be parsed.
package seed

import "convo/internal/model"

// Contacts returns the starter contact list.
func Contacts() []model.Contact {
	return []model.Contact{
		{ID: "1", Name: "Ana Souza", Title: "Design", Online: true},
		{ID: "2", Name: "Bruno Lima", Title: "Engineering", Online: true},
		{ID: "3", Name: "Clara Mendes", Title: "Sales"},
	}
}

// Conversations returns the starter conversations: one empty log per seed
// contact, created eagerly so hydration always has a consistent shape.
func Conversations() []model.Conversation {
	contacts := Contacts()
	out := make([]model.Conversation, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, model.Conversation{
			Key:       model.ConversationKey(c.ID),
			ContactID: c.ID,
		})
	}
	return out
}

// Preferences returns the default user preferences.
func Preferences() model.Preferences {
	return model.Preferences{
		NotifyEnabled: true,
		ReadReceipts:  true,
		LastOpenTab:   "chats",
	}
}
