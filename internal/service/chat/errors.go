package chat

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyDraft rejects a submission whose draft is empty or whitespace.
	// Views treat it as a no-op.
	ErrEmptyDraft      = errors.New("draft is empty")
	ErrSubmitInFlight  = errors.New("a submission is already in flight")
	ErrSessionClosed   = errors.New("session closed")
	ErrSessionNotFound = errors.New("session not found")
)

// ResponderError records a responder failure that was surfaced into the
// transcript as a bot message.
type ResponderError struct {
	Err error
}

func (e *ResponderError) Error() string {
	return fmt.Sprintf("responder failed: %v", e.Err)
}

func (e *ResponderError) Unwrap() error {
	return e.Err
}

// failureText is the bot message shown in place of a reply.
func failureText(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Sorry, that took too long and I gave up. Please try again."
	case errors.Is(err, context.Canceled):
		return "Sorry, the reply was cancelled before it finished."
	default:
		return fmt.Sprintf("Sorry, I couldn't come up with a reply: %v", err)
	}
}
