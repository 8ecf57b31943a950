package chat

import (
	"sync"
	"time"

	"github.com/muser-music/muser/backend/internal/model/chat"
)

// DefaultWelcome is the seed message of every transcript unless overridden.
const DefaultWelcome = "welcome to muser, a new vibe coding music platform to generate music. Chat to get started."

// AppendListener observes a committed append. length is the transcript
// length including msg. Listeners run synchronously on the appending
// goroutine and must not block or call back into the owning session.
type AppendListener func(msg chat.Message, length int)

type listenerEntry struct {
	id int
	fn AppendListener
}

// Transcript is an append-only, ordered log of messages. It issues message
// ids from its own counter, so ids are unique and increasing regardless of
// wall-clock resolution.
type Transcript struct {
	mu        sync.RWMutex
	messages  []chat.Message
	nextID    chat.MessageID
	listeners []listenerEntry
	lastLsnID int
	now       func() time.Time
}

// NewTranscript returns a transcript seeded with a single bot welcome message.
func NewTranscript(welcome string) *Transcript {
	return newTranscript(welcome, time.Now)
}

func newTranscript(welcome string, now func() time.Time) *Transcript {
	if welcome == "" {
		welcome = DefaultWelcome
	}

	t := &Transcript{
		messages: make([]chat.Message, 0, 16),
		now:      now,
	}
	t.messages = append(t.messages, chat.Message{
		ID:        chat.SeedMessageID,
		Text:      welcome,
		Sender:    chat.SenderBot,
		Timestamp: now().UTC(),
	})
	t.nextID = chat.SeedMessageID + 1
	return t
}

// Append adds a message to the end of the transcript and notifies listeners
// once the message is visible to readers.
func (t *Transcript) Append(sender chat.Sender, text string) chat.Message {
	t.mu.Lock()
	msg := chat.Message{
		ID:        t.nextID,
		Text:      text,
		Sender:    sender,
		Timestamp: t.now().UTC(),
	}
	t.nextID++
	t.messages = append(t.messages, msg)
	length := len(t.messages)
	listeners := make([]listenerEntry, len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	for _, l := range listeners {
		l.fn(msg, length)
	}
	return msg
}

// OnAppend registers a listener and returns a function that removes it.
func (t *Transcript) OnAppend(fn AppendListener) (unsubscribe func()) {
	t.mu.Lock()
	t.lastLsnID++
	id := t.lastLsnID
	t.listeners = append(t.listeners, listenerEntry{id: id, fn: fn})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			for i, l := range t.listeners {
				if l.id == id {
					t.listeners = append(t.listeners[:i:i], t.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Messages returns a copy of the transcript in display order.
func (t *Transcript) Messages() []chat.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	copied := make([]chat.Message, len(t.messages))
	copy(copied, t.messages)
	return copied
}

// Len returns the number of messages, seed included.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Last returns the most recent message. A transcript is never empty.
func (t *Transcript) Last() chat.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.messages[len(t.messages)-1]
}
