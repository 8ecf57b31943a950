package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/muser-music/muser/backend/internal/model/chat"
	"github.com/muser-music/muser/backend/internal/service/responder"
)

// DefaultResponderTimeout bounds a single responder call.
const DefaultResponderTimeout = 60 * time.Second

// Options configures a new Session.
type Options struct {
	Welcome   string
	Responder responder.Responder
	Timeout   time.Duration
}

// Session owns one transcript and its draft and runs the submission state
// machine: idle -> submitting -> idle, and closed once torn down.
type Session struct {
	id         string
	createdAt  time.Time
	transcript *Transcript
	responder  responder.Responder
	timeout    time.Duration

	// ctx is cancelled by Close so pending responder calls stop early.
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	draft string
	state chat.State
}

// Submission describes the outcome of one accepted submission.
type Submission struct {
	User    chat.Message   `json:"user"`
	Replies []chat.Message `json:"replies"`
	// Err is set when the responder failed; its bot message is the last
	// entry of Replies.
	Err *ResponderError `json:"-"`
	// Discarded is set when the session closed before the responder finished.
	Discarded bool `json:"discarded,omitempty"`
}

// NewSession returns an idle session seeded with the welcome message.
func NewSession(id string, opts Options) *Session {
	if opts.Responder == nil {
		opts.Responder = responder.Stub{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultResponderTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:         id,
		createdAt:  time.Now().UTC(),
		transcript: NewTranscript(opts.Welcome),
		responder:  opts.Responder,
		timeout:    opts.Timeout,
		ctx:        ctx,
		cancel:     cancel,
		state:      chat.StateIdle,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Transcript exposes the session's message log for reading and observing.
func (s *Session) Transcript() *Transcript { return s.transcript }

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

func (s *Session) State() chat.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetDraft replaces the draft. The draft stays editable while a reply is
// pending.
func (s *Session) SetDraft(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == chat.StateClosed {
		return ErrSessionClosed
	}
	s.draft = text
	return nil
}

// Snapshot copies the session for rendering.
func (s *Session) Snapshot() chat.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return chat.Snapshot{
		ID:        s.id,
		State:     s.state,
		Draft:     s.draft,
		Messages:  s.transcript.Messages(),
		CreatedAt: s.createdAt,
	}
}

// Pending is an accepted submission whose replies have not been produced
// yet. Wait must be called exactly once to return the session to idle.
type Pending struct {
	s       *Session
	user    chat.Message
	history []chat.Message
	once    sync.Once
	result  Submission
}

// User returns the appended user message.
func (p *Pending) User() chat.Message { return p.user }

// Begin validates the draft and, when it is accepted, appends it as a user
// message, clears the draft and moves the session to submitting.
func (s *Session) Begin() (*Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIdleLocked(); err != nil {
		return nil, err
	}
	return s.beginLocked()
}

// BeginText replaces the draft with text and begins in the same critical
// section, so no concurrent SetDraft can slip in between. A rejected
// submission leaves text as the draft unless the session is closed or busy.
func (s *Session) BeginText(text string) (*Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIdleLocked(); err != nil {
		return nil, err
	}
	s.draft = text
	return s.beginLocked()
}

func (s *Session) checkIdleLocked() error {
	switch s.state {
	case chat.StateClosed:
		return ErrSessionClosed
	case chat.StateSubmitting:
		return ErrSubmitInFlight
	}
	return nil
}

func (s *Session) beginLocked() (*Pending, error) {
	text := s.draft
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDraft
	}

	history := s.transcript.Messages()
	user := s.transcript.Append(chat.SenderUser, text)
	s.draft = ""
	s.state = chat.StateSubmitting

	return &Pending{s: s, user: user, history: history}, nil
}

// Submit is Begin followed by Wait.
func (s *Session) Submit(ctx context.Context) (Submission, error) {
	p, err := s.Begin()
	if err != nil {
		return Submission{}, err
	}
	return p.Wait(ctx), nil
}

// SubmitText is BeginText followed by Wait.
func (s *Session) SubmitText(ctx context.Context, text string) (Submission, error) {
	p, err := s.BeginText(text)
	if err != nil {
		return Submission{}, err
	}
	return p.Wait(ctx), nil
}

// Wait runs the responder and appends its replies. A responder failure is
// appended as a bot message. If the session closes first, remaining replies
// are dropped and the result is marked discarded. Cancelling ctx cancels the
// responder call.
func (p *Pending) Wait(ctx context.Context) Submission {
	p.once.Do(func() {
		p.result = p.s.respond(ctx, p.user, p.history)
	})
	return p.result
}

func (s *Session) respond(ctx context.Context, user chat.Message, history []chat.Message) Submission {
	sub := Submission{User: user}

	callCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	failure := s.drain(callCtx, user.Text, history, &sub)
	if sub.Discarded {
		log.Printf("[chat] session=%s closed while responding, dropped remaining replies", s.id)
		return sub
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == chat.StateClosed {
		sub.Discarded = true
		log.Printf("[chat] session=%s closed while responding, dropped result", s.id)
		return sub
	}

	if failure != nil {
		log.Printf("[chat] session=%s responder failed: %v", s.id, failure)
		sub.Err = &ResponderError{Err: failure}
		sub.Replies = append(sub.Replies, s.transcript.Append(chat.SenderBot, failureText(failure)))
	}
	s.state = chat.StateIdle
	return sub
}

// drain ranges over the responder output, appending each reply while the
// session is open. It returns the responder failure, if any.
func (s *Session) drain(ctx context.Context, text string, history []chat.Message, sub *Submission) (failure error) {
	defer func() {
		if r := recover(); r != nil {
			failure = fmt.Errorf("responder panicked: %v", r)
		}
	}()

	for reply, err := range s.responder.Respond(ctx, text, history) {
		if err != nil {
			return err
		}
		if strings.TrimSpace(reply.Text) == "" {
			continue
		}
		msg, ok := s.appendReply(reply.Text)
		if !ok {
			sub.Discarded = true
			return nil
		}
		sub.Replies = append(sub.Replies, msg)
	}
	if len(sub.Replies) == 0 {
		// A responder that gave up on cancellation without reporting it.
		return ctx.Err()
	}
	return nil
}

func (s *Session) appendReply(text string) (chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == chat.StateClosed {
		return chat.Message{}, false
	}
	return s.transcript.Append(chat.SenderBot, text), true
}

// Close tears the session down. Pending responder calls are cancelled and
// nothing is appended afterwards. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == chat.StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = chat.StateClosed
	s.mu.Unlock()

	s.cancel()
}
