package stream

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/muser-music/muser/backend/internal/model/chat"
	chatService "github.com/muser-music/muser/backend/internal/service/chat"
	"github.com/muser-music/muser/backend/pkg/utils"
)

const defaultHeartbeat = 15 * time.Second

// Handler streams transcript appends of a session via Server-Sent Events.
type Handler struct {
	chatSvc   *chatService.Service
	heartbeat time.Duration
}

// New creates a new stream handler
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc, heartbeat: defaultHeartbeat}
}

// RegisterRoutes registers the event stream route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}/events", h.handleEvents)
}

// handleEvents sends a snapshot event, then one message event per append
// until the client leaves or the session is closed.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Subscribe before taking the snapshot so no append falls in between.
	messages, cancel := session.Subscribe()
	defer cancel()
	snapshot := session.Snapshot()
	lastID := lastMessageID(snapshot.Messages)

	utils.SetupSSEHeaders(w)
	if err := utils.SendSSEEvent(w, flusher, "snapshot", snapshot); err != nil {
		log.Printf("[sse] session=%s: %v", sessionID, err)
		return
	}

	ctx := r.Context()
	log.Printf("[sse] opening stream for session=%s", sessionID)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	send := func(msg chat.Message) error {
		if msg.ID <= lastID {
			return nil
		}
		lastID = msg.ID
		return utils.SendSSEEvent(w, flusher, "message", msg)
	}

	for {
		var err error
		select {
		case <-ctx.Done():
			log.Printf("[sse] client left session=%s", sessionID)
			return
		case <-session.Done():
			// Appends committed before Close may still be buffered.
			if err = drain(messages, send); err == nil {
				err = utils.SendSSEEvent(w, flusher, "closed", map[string]string{"sessionId": sessionID})
			}
			if err != nil {
				log.Printf("[sse] session=%s: %v", sessionID, err)
			}
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			err = send(msg)
		case t := <-ticker.C:
			err = utils.SendSSEChunk(w, flusher, map[string]any{
				"event": "heartbeat",
				"time":  t.UTC().Format(time.RFC3339),
			})
		}
		if err != nil {
			log.Printf("[sse] write failed session=%s, closing stream: %v", sessionID, err)
			return
		}
	}
}

// drain hands every buffered message to send without blocking.
func drain(messages <-chan chat.Message, send func(chat.Message) error) error {
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := send(msg); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func lastMessageID(messages []chat.Message) chat.MessageID {
	if len(messages) == 0 {
		return chat.SeedMessageID
	}
	return messages[len(messages)-1].ID
}
