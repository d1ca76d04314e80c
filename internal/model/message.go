package model

import "time"

// LocalSender marks a message authored by the local user rather than a contact.
const LocalSender = "me"

// Tombstone replaces the text of a message deleted for everyone.
const Tombstone = "This message was deleted"

// Status is the delivery status of a message. It only moves forward.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

var statusRank = map[Status]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusRead:      2,
}

// Advance returns the later of the two statuses. Delivery status is
// monotonic: sent -> delivered -> read, never back.
func (s Status) Advance(to Status) Status {
	if statusRank[to] > statusRank[s] {
		return to
	}
	return s
}

// MessageType describes how a message body should be summarized.
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeAudio MessageType = "audio"
	TypeFile  MessageType = "file"
	TypeCall  MessageType = "call"
)

// Message is an envelope in a conversation log. It is immutable after
// creation except for the two deletion flags and the delivery status.
type Message struct {
	ID                 string       `json:"id"`
	Sender             string       `json:"sender"` // LocalSender or a contact id
	Text               string       `json:"text,omitempty"`
	Type               MessageType  `json:"type"`
	Status             Status       `json:"status"`
	Timestamp          time.Time    `json:"timestamp"`
	HiddenForMe        bool         `json:"hidden_for_me,omitempty"`
	DeletedForEveryone bool         `json:"deleted_for_everyone,omitempty"`
	Attachments        []Attachment `json:"attachments,omitempty"`
}

// FromMe reports whether the local user authored the message.
func (m *Message) FromMe() bool {
	return m.Sender == LocalSender
}

// Rendered returns the text a viewer should see for the message. A
// tombstoned message always renders the tombstone marker regardless of
// any other flag.
func (m *Message) Rendered() string {
	if m.DeletedForEveryone {
		return Tombstone
	}
	return m.Text
}
