// Package store owns the in-memory chat state: contacts, conversations and
// preferences. All mutation goes through its methods; every mutation is
// published on the bus so the persistence adapter can write through.
package store

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"convo/internal/bus"
	"convo/internal/model"
)

// Store is the exclusive owner of contacts, conversations and preferences.
type Store struct {
	mu       sync.Mutex
	contacts []model.Contact
	convs    map[string]*model.Conversation
	prefs    model.Preferences

	bus    *bus.Bus
	logger *zap.Logger
	now    func() time.Time
}

// New creates an empty store.
func New(b *bus.Bus, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		convs:  make(map[string]*model.Conversation),
		bus:    b,
		logger: logger,
		now:    time.Now,
	}
}

// Hydrate replaces the full state in one step. Called once at startup by the
// persistence adapter, before any other mutation.
func (s *Store) Hydrate(contacts []model.Contact, convs []model.Conversation, prefs model.Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contacts = append([]model.Contact(nil), contacts...)
	s.convs = make(map[string]*model.Conversation, len(convs))
	for i := range convs {
		c := convs[i]
		s.convs[c.Key] = &c
	}
	s.prefs = prefs
	s.recomputeUnreadLocked()
	s.logger.Info("store hydrated",
		zap.Int("contacts", len(s.contacts)),
		zap.Int("conversations", len(s.convs)))
}

// Contact returns a copy of the contact with the given id.
func (s *Store) Contact(id string) (model.Contact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contacts {
		if c.ID == id {
			return c, true
		}
	}
	return model.Contact{}, false
}

// Contacts returns a copy of all contacts in display order.
func (s *Store) Contacts() []model.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Contact(nil), s.contacts...)
}

// UpsertContact adds or updates a contact. Contacts are never hard-deleted.
func (s *Store) UpsertContact(c model.Contact) {
	s.mu.Lock()
	for i := range s.contacts {
		if s.contacts[i].ID == c.ID {
			// Unread and preview are store-derived; keep the live values.
			c.Unread = s.contacts[i].Unread
			c.Preview = s.contacts[i].Preview
			s.contacts[i] = c
			s.mu.Unlock()
			s.publish("chat.contact_updated", map[string]string{"contact_id": c.ID})
			return
		}
	}
	s.contacts = append(s.contacts, c)
	s.mu.Unlock()
	s.publish("chat.contact_updated", map[string]string{"contact_id": c.ID})
}

// Conversation returns a deep copy of the conversation under the given key.
func (s *Store) Conversation(key string) (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[key]
	if !ok {
		return model.Conversation{}, false
	}
	return copyConversation(conv), true
}

// Preferences returns a copy of the current preferences.
func (s *Store) Preferences() model.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// UpdatePreferences applies fn to the preferences under the store lock.
func (s *Store) UpdatePreferences(fn func(*model.Preferences)) {
	s.mu.Lock()
	fn(&s.prefs)
	s.mu.Unlock()
	s.publish("chat.prefs_updated", nil)
}

// ensureConversationLocked returns the conversation for a contact, creating
// an empty one if absent. A missing conversation is never an error.
func (s *Store) ensureConversationLocked(contactID string) *model.Conversation {
	key := model.ConversationKey(contactID)
	conv, ok := s.convs[key]
	if !ok {
		conv = &model.Conversation{Key: key, ContactID: contactID}
		s.convs[key] = conv
	}
	return conv
}

func (s *Store) contactLocked(id string) *model.Contact {
	for i := range s.contacts {
		if s.contacts[i].ID == id {
			return &s.contacts[i]
		}
	}
	return nil
}

func (s *Store) publish(kind string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

func copyConversation(c *model.Conversation) model.Conversation {
	out := *c
	out.Messages = make([]model.Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	for i := range out.Messages {
		out.Messages[i].Attachments = append([]model.Attachment(nil), out.Messages[i].Attachments...)
	}
	return out
}
