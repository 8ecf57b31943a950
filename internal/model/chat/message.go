package chat

import "time"

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// MessageID is issued by a transcript in append order. SeedMessageID is
// reserved for the welcome message every transcript starts with.
type MessageID uint64

const SeedMessageID MessageID = 0

// Message is a single transcript entry. Timestamp is informational;
// display order is append order.
type Message struct {
	ID        MessageID `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// FromUser reports whether the message was authored by the user.
func (m Message) FromUser() bool {
	return m.Sender == SenderUser
}
