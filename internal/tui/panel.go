// Package tui renders a chat session in the terminal.
package tui

import "github.com/muser-music/muser/backend/internal/model/chat"

// AppendedMsg carries a transcript append observed through the session
// subscription.
type AppendedMsg struct{ Message chat.Message }

// ReplyDoneMsg is emitted when the responder call for a submission returns.
type ReplyDoneMsg struct {
	Failed    bool
	Discarded bool
}

// subscriptionClosedMsg is emitted once the subscription channel is closed.
type subscriptionClosedMsg struct{}
