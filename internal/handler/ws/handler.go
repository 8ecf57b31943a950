package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/muser-music/muser/backend/internal/model/chat"
	chatService "github.com/muser-music/muser/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler serves a chat session as a WebSocket view. The browser renders
// message frames and follows scroll frames.
type Handler struct {
	chatSvc  *chatService.Service
	upgrader websocket.Upgrader
}

// New creates a WebSocket view handler.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers the WebSocket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DraftMessage carries the input box content.
type DraftMessage struct {
	Text string `json:"text"`
}

// SubmitMessage submits the draft; Text, when set, replaces it first.
type SubmitMessage struct {
	Text *string `json:"text,omitempty"`
}

// ScrollMessage asks the view to bring a message into view.
type ScrollMessage struct {
	MessageID chat.MessageID       `json:"messageId"`
	Behavior  chatService.Behavior `json:"behavior"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// conn serialises writes to the socket; gorilla allows one writer at a time.
type conn struct {
	ws        *websocket.Conn
	sessionID string
	mu        sync.Mutex
}

func (c *conn) send(kind string, data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	msg := outgoingMessage{
		Type:      kind,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := c.ws.WriteJSON(msg); err != nil {
		log.Printf("[ws] write %s failed session=%s: %v", kind, c.sessionID, err)
	}
}

func (c *conn) sendError(message string) {
	c.send("error", map[string]string{"message": message})
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleWebSocket handles a view connection
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer wsConn.Close()

	log.Printf("[ws] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &conn{ws: wsConn, sessionID: sessionID}

	_ = wsConn.SetReadDeadline(time.Now().Add(readTimeout))
	wsConn.SetPongHandler(func(string) error {
		return wsConn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	// Subscribe before the snapshot so no append falls in between.
	messages, unsubscribe := session.Subscribe()
	defer unsubscribe()
	snapshot := session.Snapshot()

	scroll := chatService.NewAutoscroll(chatService.ScrollFunc(func(msg chat.Message, behavior chatService.Behavior) {
		c.send("scroll", ScrollMessage{MessageID: msg.ID, Behavior: behavior})
	}))

	c.send("snapshot", snapshot)
	rendered := len(snapshot.Messages)
	scroll.AfterRender(rendered, snapshot.Messages[rendered-1])
	lastID := snapshot.Messages[rendered-1].ID

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.pingLoop(ctx, c)
	}()
	render := func(msg chat.Message) {
		if msg.ID <= lastID {
			return
		}
		lastID = msg.ID
		c.send("message", msg)
		rendered++
		scroll.AfterRender(rendered, msg)
	}

	go func() {
		defer wg.Done()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-session.Done():
				// Appends committed before Close may still be buffered.
				drain(messages, render)
				c.send("closed", nil)
				_ = wsConn.Close()
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				render(msg)
			}
		}
	}()

	h.readLoop(ctx, c, session)
	cancel()
	wg.Wait()
	log.Printf("[ws] connection closed for session: %s", sessionID)
}

// drain renders every buffered message without blocking.
func drain(messages <-chan chat.Message, render func(chat.Message)) {
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}
			render(msg)
		default:
			return
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, c *conn, session *chatService.Session) {
	for {
		var msg inboundMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error: %v", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))

		if ctx.Err() != nil {
			return
		}
		h.handleMessage(c, session, &msg)
	}
}

func (h *Handler) handleMessage(c *conn, session *chatService.Session, msg *inboundMessage) {
	switch msg.Type {
	case "draft":
		var draft DraftMessage
		if err := json.Unmarshal(msg.Data, &draft); err != nil {
			c.sendError("invalid draft payload")
			return
		}
		if err := session.SetDraft(draft.Text); err != nil {
			c.sendError(err.Error())
			return
		}
		c.send("draft", DraftMessage{Text: draft.Text})
	case "submit":
		var submit SubmitMessage
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &submit); err != nil {
				c.sendError("invalid submit payload")
				return
			}
		}
		h.handleSubmit(c, session, submit)
	default:
		c.sendError("unsupported message type: " + msg.Type)
	}
}

func (h *Handler) handleSubmit(c *conn, session *chatService.Session, submit SubmitMessage) {
	var (
		pending *chatService.Pending
		err     error
	)
	if submit.Text != nil {
		pending, err = session.BeginText(*submit.Text)
	} else {
		pending, err = session.Begin()
	}
	switch {
	case errors.Is(err, chatService.ErrEmptyDraft):
		return
	case err != nil:
		c.sendError(err.Error())
		return
	}
	c.send("draft", DraftMessage{Text: session.Draft()})

	// The reply is awaited off the read loop so the draft stays editable.
	// It outlives the socket; closing the session is what cancels it.
	go func() {
		sub := pending.Wait(context.Background())
		if sub.Err != nil {
			log.Printf("[ws] reply failed session=%s: %v", c.sessionID, sub.Err)
		}
	}()
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, c *conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
