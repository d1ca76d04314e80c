package store

import (
	"github.com/google/uuid"

	"convo/internal/model"
)

// AppendMessage appends a message to the contact's conversation, creating it
// if absent. The contact's preview is refreshed and its unread counter is
// bumped only for incoming messages landing outside the open conversation.
func (s *Store) AppendMessage(contactID string, msg model.Message) {
	s.mu.Lock()
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	conv := s.ensureConversationLocked(contactID)
	conv.Messages = append(conv.Messages, msg)

	if c := s.contactLocked(contactID); c != nil {
		c.Preview = previewFor(&msg)
	}
	s.recomputeUnreadLocked()
	s.mu.Unlock()

	s.publish("chat.message_appended", map[string]string{
		"contact_id": contactID,
		"msg_id":     msg.ID,
	})
}

// Send composes an outbound message and fans it out. The primary contact's
// conversation gets the local user's copy with status sent. Every extra
// recipient gets an independent clone with a fresh id, sender set to that
// recipient and status delivered, simulating an inbound echo. Attachments
// must already be resolved; Send never blocks on media.
func (s *Store) Send(contactID, text string, attachments []model.Attachment, extraRecipients []string) model.Message {
	msg := model.Message{
		ID:          uuid.New().String(),
		Sender:      model.LocalSender,
		Text:        text,
		Type:        messageType(text, attachments),
		Status:      model.StatusSent,
		Timestamp:   s.now(),
		Attachments: attachments,
	}
	s.AppendMessage(contactID, msg)

	for _, rid := range extraRecipients {
		if rid == contactID {
			continue
		}
		clone := msg
		clone.ID = uuid.New().String()
		clone.Sender = rid
		clone.Status = model.StatusDelivered
		clone.Attachments = append([]model.Attachment(nil), attachments...)
		s.AppendMessage(rid, clone)
	}
	return msg
}

// DeleteForMe hides a message locally. The message stays in the log for all
// consistency and unread computations; only rendering is affected. No-op if
// the message does not exist.
func (s *Store) DeleteForMe(convKey, msgID string) {
	s.mu.Lock()
	conv, ok := s.convs[convKey]
	if !ok {
		s.mu.Unlock()
		return
	}
	for i := range conv.Messages {
		if conv.Messages[i].ID == msgID {
			conv.Messages[i].HiddenForMe = true
			break
		}
	}
	s.mu.Unlock()

	s.publish("chat.message_updated", map[string]string{
		"conv_key": convKey,
		"msg_id":   msgID,
		"change":   "hidden_for_me",
	})
}

// DeleteForEveryone tombstones a message: the text is replaced with the
// deleted marker and attachments are cleared. Irreversible and idempotent.
func (s *Store) DeleteForEveryone(convKey, msgID string) {
	s.mu.Lock()
	conv, ok := s.convs[convKey]
	if !ok {
		s.mu.Unlock()
		return
	}
	for i := range conv.Messages {
		m := &conv.Messages[i]
		if m.ID == msgID {
			m.Text = model.Tombstone
			m.Attachments = nil
			m.DeletedForEveryone = true
			break
		}
	}
	s.mu.Unlock()

	s.publish("chat.message_updated", map[string]string{
		"conv_key": convKey,
		"msg_id":   msgID,
		"change":   "deleted_for_everyone",
	})
}

// PinMessage records the pinned message for a conversation. Pinning a
// message id that is not in the log is a no-op.
func (s *Store) PinMessage(convKey, msgID string) {
	s.mu.Lock()
	conv, ok := s.convs[convKey]
	if !ok {
		s.mu.Unlock()
		return
	}
	found := false
	for i := range conv.Messages {
		if conv.Messages[i].ID == msgID {
			found = true
			break
		}
	}
	if found {
		conv.PinnedMessageID = msgID
	}
	s.mu.Unlock()

	if found {
		s.publish("chat.message_updated", map[string]string{
			"conv_key": convKey,
			"msg_id":   msgID,
			"change":   "pinned",
		})
	}
}

func messageType(text string, attachments []model.Attachment) model.MessageType {
	if len(attachments) == 0 {
		return model.TypeText
	}
	switch attachments[0].Kind {
	case model.KindImage:
		return model.TypeImage
	case model.KindAudio:
		return model.TypeAudio
	default:
		return model.TypeFile
	}
}

// previewFor builds the one-line contact summary for the most recent message.
func previewFor(m *model.Message) string {
	if m.DeletedForEveryone {
		return model.Tombstone
	}
	if len(m.Attachments) > 0 {
		a := &m.Attachments[0]
		switch a.Kind {
		case model.KindImage:
			return "[image] " + a.Filename
		case model.KindAudio:
			return "[audio] " + a.Filename
		default:
			return "[file] " + a.Filename
		}
	}
	return m.Text
}
