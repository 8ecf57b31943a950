package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/muser-music/muser/backend/internal/model/chat"
	chatservice "github.com/muser-music/muser/backend/internal/service/chat"
	"github.com/muser-music/muser/backend/internal/service/responder"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dial(t *testing.T) (*websocket.Conn, *chatservice.Service, *chatservice.Session, func()) {
	t.Helper()
	chatSvc := chatservice.NewService(chatservice.Config{Responder: responder.Stub{}})
	session, err := chatSvc.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	router := chi.NewRouter()
	New(chatSvc).RegisterRoutes(router)
	srv := httptest.NewServer(router)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + session.ID()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial err: %v", err)
	}
	return conn, chatSvc, session, func() {
		conn.Close()
		srv.Close()
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func send(t *testing.T, conn *websocket.Conn, kind string, data any) {
	t.Helper()
	raw, _ := json.Marshal(data)
	if err := conn.WriteJSON(map[string]any{"type": kind, "data": json.RawMessage(raw)}); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func TestConnectSendsSnapshotThenScroll(t *testing.T) {
	conn, _, _, cleanup := dial(t)
	defer cleanup()

	first := readFrame(t, conn)
	if first.Type != "snapshot" {
		t.Fatalf("expected snapshot, got %s", first.Type)
	}
	var snap chat.Snapshot
	if err := json.Unmarshal(first.Data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.Messages) != 1 {
		t.Fatalf("expected seed only, got %d", len(snap.Messages))
	}

	second := readFrame(t, conn)
	if second.Type != "scroll" {
		t.Fatalf("expected scroll after first render, got %s", second.Type)
	}
	var scroll ScrollMessage
	if err := json.Unmarshal(second.Data, &scroll); err != nil {
		t.Fatalf("decode scroll: %v", err)
	}
	if scroll.MessageID != chat.SeedMessageID || scroll.Behavior != chatservice.BehaviorSmooth {
		t.Fatalf("unexpected scroll: %+v", scroll)
	}
}

func TestSubmitStreamsMessagesEachFollowedByScroll(t *testing.T) {
	conn, _, session, cleanup := dial(t)
	defer cleanup()
	readFrame(t, conn) // snapshot
	readFrame(t, conn) // scroll

	send(t, conn, "draft", DraftMessage{Text: "Generate lofi beats"})
	if f := readFrame(t, conn); f.Type != "draft" {
		t.Fatalf("expected draft echo without scroll, got %s", f.Type)
	}
	send(t, conn, "submit", SubmitMessage{})

	var (
		messages []chat.Message
		scrolls  int
		pending  *chat.Message
	)
	for scrolls < 2 {
		f := readFrame(t, conn)
		switch f.Type {
		case "draft":
			continue
		case "message":
			var msg chat.Message
			if err := json.Unmarshal(f.Data, &msg); err != nil {
				t.Fatalf("decode message: %v", err)
			}
			if pending != nil {
				t.Fatalf("message %d arrived before scroll for %d", msg.ID, pending.ID)
			}
			messages = append(messages, msg)
			pending = &messages[len(messages)-1]
		case "scroll":
			var scroll ScrollMessage
			if err := json.Unmarshal(f.Data, &scroll); err != nil {
				t.Fatalf("decode scroll: %v", err)
			}
			if pending == nil || scroll.MessageID != pending.ID {
				t.Fatalf("scroll %+v did not follow its message", scroll)
			}
			pending = nil
			scrolls++
		default:
			t.Fatalf("unexpected frame %s", f.Type)
		}
	}

	if len(messages) != 2 || messages[0].Text != "Generate lofi beats" || messages[1].Text != responder.StubReplyText {
		t.Fatalf("unexpected messages: %+v", messages)
	}
	if session.Draft() != "" {
		t.Fatalf("expected draft cleared, got %q", session.Draft())
	}
}

func TestBlankSubmitIsIgnored(t *testing.T) {
	conn, _, session, cleanup := dial(t)
	defer cleanup()
	readFrame(t, conn)
	readFrame(t, conn)

	blank := "   "
	send(t, conn, "submit", SubmitMessage{Text: &blank})
	send(t, conn, "draft", DraftMessage{Text: "next"})

	if f := readFrame(t, conn); f.Type != "draft" {
		t.Fatalf("expected only the draft echo, got %s", f.Type)
	}
	if session.Transcript().Len() != 1 {
		t.Fatalf("expected transcript unchanged, got %d", session.Transcript().Len())
	}
}

func TestSessionCloseNotifiesView(t *testing.T) {
	conn, chatSvc, session, cleanup := dial(t)
	defer cleanup()
	readFrame(t, conn)
	readFrame(t, conn)

	if err := chatSvc.CloseSession(context.Background(), session.ID()); err != nil {
		t.Fatalf("CloseSession err: %v", err)
	}
	if f := readFrame(t, conn); f.Type != "closed" {
		t.Fatalf("expected closed frame, got %s", f.Type)
	}
}

func TestUnsupportedFrame(t *testing.T) {
	conn, _, _, cleanup := dial(t)
	defer cleanup()
	readFrame(t, conn)
	readFrame(t, conn)

	send(t, conn, "dance", nil)
	if f := readFrame(t, conn); f.Type != "error" {
		t.Fatalf("expected error frame, got %s", f.Type)
	}
}

func TestCommittedMessagesArriveBeforeClosed(t *testing.T) {
	for run := 0; run < 20; run++ {
		conn, chatSvc, session, cleanup := dial(t)
		readFrame(t, conn) // snapshot
		readFrame(t, conn) // scroll

		_ = session.SetDraft("Generate lofi beats")
		if _, err := session.Submit(context.Background()); err != nil {
			t.Fatalf("run %d: Submit err: %v", run, err)
		}
		if err := chatSvc.CloseSession(context.Background(), session.ID()); err != nil {
			t.Fatalf("run %d: CloseSession err: %v", run, err)
		}

		var kinds []string
		for len(kinds) == 0 || kinds[len(kinds)-1] != "closed" {
			if f := readFrame(t, conn); f.Type != "scroll" {
				kinds = append(kinds, f.Type)
			}
		}
		if strings.Join(kinds, ",") != "message,message,closed" {
			t.Fatalf("run %d: expected both messages before closed, got %v", run, kinds)
		}
		cleanup()
	}
}
