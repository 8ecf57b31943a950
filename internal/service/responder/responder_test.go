package responder_test

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/muser-music/muser/backend/internal/config"
	"github.com/muser-music/muser/backend/internal/model/chat"
	"github.com/muser-music/muser/backend/internal/service/responder"
)

func collect(t *testing.T, r responder.Responder, text string) ([]responder.Reply, error) {
	t.Helper()
	var replies []responder.Reply
	for reply, err := range r.Respond(context.Background(), text, nil) {
		if err != nil {
			return replies, err
		}
		replies = append(replies, reply)
	}
	return replies, nil
}

func TestStubIgnoresInput(t *testing.T) {
	for _, text := range []string{"Generate lofi beats", "anything else"} {
		replies, err := collect(t, responder.Stub{}, text)
		if err != nil {
			t.Fatalf("Stub err: %v", err)
		}
		if len(replies) != 1 || replies[0].Text != responder.StubReplyText {
			t.Fatalf("unexpected stub replies: %+v", replies)
		}
	}
}

func TestFuncYieldsRepliesThenStops(t *testing.T) {
	f := responder.Func(func(context.Context, string, []chat.Message) ([]responder.Reply, error) {
		return []responder.Reply{{Text: "a"}, {Text: "b"}, {Text: "c"}}, nil
	})

	var got []string
	for reply, err := range f.Respond(context.Background(), "x", nil) {
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		got = append(got, reply.Text)
		if len(got) == 2 {
			break
		}
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected replies: %v", got)
	}
}

func TestFuncReportsFailure(t *testing.T) {
	boom := errors.New("boom")
	f := responder.Func(func(context.Context, string, []chat.Message) ([]responder.Reply, error) {
		return nil, boom
	})

	if _, err := collect(t, f, "x"); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := collect(t, fixed{responder.Fail(boom)}, "x"); !errors.Is(err, boom) {
		t.Fatalf("expected boom from Fail, got %v", err)
	}
}

type fixed struct {
	seq iter.Seq2[responder.Reply, error]
}

func (f fixed) Respond(context.Context, string, []chat.Message) iter.Seq2[responder.Reply, error] {
	return f.seq
}

func TestNewFallsBackToStub(t *testing.T) {
	cfg := &config.Config{Chat: config.ChatConfig{Responder: config.ResponderLLM}}

	if _, ok := responder.New(context.Background(), cfg).(responder.Stub); !ok {
		t.Fatal("expected stub responder without Ark credentials")
	}

	cfg.Chat.Responder = config.ResponderStub
	if _, ok := responder.New(context.Background(), cfg).(responder.Stub); !ok {
		t.Fatal("expected stub responder when configured")
	}
}
