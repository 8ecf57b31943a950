package chat

import (
	"log"
	"sync"

	"github.com/muser-music/muser/backend/internal/model/chat"
)

const subscriberBuffer = 64

// Subscribe streams messages appended from now on. The channel is closed when
// cancel is called. A subscriber that falls more than a buffer behind loses
// messages and should resync from Transcript().Messages().
func (s *Session) Subscribe() (<-chan chat.Message, func()) {
	ch := make(chan chat.Message, subscriberBuffer)

	var mu sync.Mutex
	closed := false

	unsubscribe := s.transcript.OnAppend(func(msg chat.Message, _ int) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- msg:
		default:
			log.Printf("[chat] session=%s subscriber lagging, dropped message id=%d", s.id, msg.ID)
		}
	})

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			unsubscribe()
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}
	return ch, cancel
}
