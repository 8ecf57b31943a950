package chat

import "github.com/muser-music/muser/backend/internal/model/chat"

// Behavior selects how a view scrolls.
type Behavior string

const (
	BehaviorSmooth  Behavior = "smooth"
	BehaviorInstant Behavior = "instant"
)

// ScrollTarget moves a view so that msg is visible.
type ScrollTarget interface {
	ScrollTo(msg chat.Message, behavior Behavior)
}

// ScrollFunc adapts a function to ScrollTarget.
type ScrollFunc func(msg chat.Message, behavior Behavior)

func (f ScrollFunc) ScrollTo(msg chat.Message, behavior Behavior) { f(msg, behavior) }

// Autoscroll keeps a view pinned to the latest message. Views call
// AfterRender once the rendered output reflects the transcript; renders that
// did not change the transcript length do not scroll. An Autoscroll belongs
// to a single view loop and is not safe for concurrent use.
type Autoscroll struct {
	target   ScrollTarget
	behavior Behavior
	length   int
}

// NewAutoscroll returns a controller that scrolls target smoothly.
func NewAutoscroll(target ScrollTarget) *Autoscroll {
	return &Autoscroll{target: target, behavior: BehaviorSmooth}
}

// WithBehavior switches the scroll behaviour, for views that cannot animate.
func (a *Autoscroll) WithBehavior(behavior Behavior) *Autoscroll {
	a.behavior = behavior
	return a
}

// AfterRender reports whether it scrolled to latest.
func (a *Autoscroll) AfterRender(length int, latest chat.Message) bool {
	if length == a.length {
		return false
	}
	a.length = length
	a.target.ScrollTo(latest, a.behavior)
	return true
}
