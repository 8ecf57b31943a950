package chat

import "time"

// State is the position of a session in the submission state machine.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateClosed     State = "closed"
)

// Snapshot is a point-in-time copy of a session for rendering.
type Snapshot struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	Draft     string    `json:"draft"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
}
