// Package responder turns a submitted user message into bot replies.
package responder

import (
	"context"
	"iter"

	"github.com/muser-music/muser/backend/internal/model/chat"
)

// Reply is a single bot message produced by a Responder.
type Reply struct {
	Text string
}

// Responder produces replies for a submitted user message. history is the
// transcript as it was before the user message was appended. The returned
// sequence is lazy: work starts when it is ranged over and may block. A
// non-nil error ends the sequence.
type Responder interface {
	Respond(ctx context.Context, userText string, history []chat.Message) iter.Seq2[Reply, error]
}

// Func adapts a function returning all replies at once.
type Func func(ctx context.Context, userText string, history []chat.Message) ([]Reply, error)

func (f Func) Respond(ctx context.Context, userText string, history []chat.Message) iter.Seq2[Reply, error] {
	return func(yield func(Reply, error) bool) {
		replies, err := f(ctx, userText, history)
		if err != nil {
			yield(Reply{}, err)
			return
		}
		for _, r := range replies {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// StubReplyText is what Stub answers to everything.
const StubReplyText = "nah im good"

// Stub ignores its input and always yields one fixed reply.
type Stub struct{}

func (Stub) Respond(context.Context, string, []chat.Message) iter.Seq2[Reply, error] {
	return Single(Reply{Text: StubReplyText})
}

// Single yields r and stops.
func Single(r Reply) iter.Seq2[Reply, error] {
	return func(yield func(Reply, error) bool) {
		yield(r, nil)
	}
}

// Fail yields err and stops.
func Fail(err error) iter.Seq2[Reply, error] {
	return func(yield func(Reply, error) bool) {
		yield(Reply{}, err)
	}
}
