package chat_test

import (
	"context"
	"errors"
	"testing"

	model "github.com/muser-music/muser/backend/internal/model/chat"
	chat "github.com/muser-music/muser/backend/internal/service/chat"
)

func TestServiceGetSession(t *testing.T) {
	svc := chat.NewService(chat.Config{})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := svc.GetSession(ctx, session.ID())
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}

	if got != session {
		t.Fatalf("unexpected session: got %s want %s", got.ID(), session.ID())
	}
	if got.Transcript().Len() != 1 {
		t.Fatalf("expected seeded transcript, got %d messages", got.Transcript().Len())
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := chat.NewService(chat.Config{})
	ctx := context.Background()

	if _, err := svc.GetSession(ctx, "missing"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServiceCloseSession(t *testing.T) {
	svc := chat.NewService(chat.Config{Welcome: "hi"})
	ctx := context.Background()

	session, _ := svc.CreateSession(ctx)
	if err := svc.CloseSession(ctx, session.ID()); err != nil {
		t.Fatalf("CloseSession err: %v", err)
	}

	if session.State() != model.StateClosed {
		t.Fatalf("expected closed session, got %s", session.State())
	}
	if _, err := svc.GetSession(ctx, session.ID()); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected closed session to be forgotten, got %v", err)
	}
	if err := svc.CloseSession(ctx, session.ID()); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second close, got %v", err)
	}
}

func TestServiceCloseAll(t *testing.T) {
	svc := chat.NewService(chat.Config{})
	ctx := context.Background()

	a, _ := svc.CreateSession(ctx)
	b, _ := svc.CreateSession(ctx)
	if a.ID() == b.ID() {
		t.Fatal("expected distinct session ids")
	}

	svc.Close()

	if svc.Len() != 0 {
		t.Fatalf("expected no live sessions, got %d", svc.Len())
	}
	select {
	case <-a.Done():
	default:
		t.Fatal("expected session a to be closed")
	}
	select {
	case <-b.Done():
	default:
		t.Fatal("expected session b to be closed")
	}
}

func TestServiceRejectsSessionsAfterClose(t *testing.T) {
	svc := chat.NewService(chat.Config{})
	svc.Close()

	session, err := svc.CreateSession(context.Background())
	if !errors.Is(err, chat.ErrSessionClosed) || session != nil {
		t.Fatalf("expected ErrSessionClosed, got %v, %v", session, err)
	}
	if svc.Len() != 0 {
		t.Fatalf("expected no live sessions, got %d", svc.Len())
	}
}
