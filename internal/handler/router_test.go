package handler

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/muser-music/muser/backend/internal/model/chat"
	chatService "github.com/muser-music/muser/backend/internal/service/chat"
)

func TestHealthz(t *testing.T) {
	router := NewRouter(chatService.NewService(chatService.Config{}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", resp.Body.String())
	}
}

func TestPreflightHandledByCORS(t *testing.T) {
	router := NewRouter(chatService.NewService(chatService.Config{}))

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if resp.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("expected CORS header")
	}
}

func TestAPIRoutesShareSessions(t *testing.T) {
	chatSvc := chatService.NewService(chatService.Config{})
	srv := httptest.NewServer(NewRouter(chatSvc))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("create session err: %v", err)
	}
	var snap chat.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	resp.Body.Close()

	events, err := http.Get(srv.URL + "/api/sessions/" + snap.ID + "/events")
	if err != nil {
		t.Fatalf("events err: %v", err)
	}
	defer events.Body.Close()
	if events.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from events, got %d", events.StatusCode)
	}
	line, err := bufio.NewReader(events.Body).ReadString('\n')
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	if strings.TrimSpace(line) != "event: snapshot" {
		t.Fatalf("expected snapshot event first, got %q", line)
	}

	get, err := http.Get(srv.URL + "/api/sessions/" + snap.ID)
	if err != nil {
		t.Fatalf("get session err: %v", err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from session, got %d", get.StatusCode)
	}
}
