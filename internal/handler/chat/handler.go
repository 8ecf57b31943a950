package chat

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/muser-music/muser/backend/internal/model/chat"
	chatService "github.com/muser-music/muser/backend/internal/service/chat"
	"github.com/muser-music/muser/backend/pkg/utils"
)

// Handler 聊天会话的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGetSession)
		r.Delete("/", h.handleCloseSession)
		r.Put("/draft", h.handleSetDraft)
		r.Post("/submit", h.handleSubmit)
	})
}

type draftRequest struct {
	Text *string `json:"text"`
}

type submitResponse struct {
	User      chat.Message   `json:"user"`
	Replies   []chat.Message `json:"replies"`
	Error     string         `json:"error,omitempty"`
	Discarded bool           `json:"discarded,omitempty"`
	Session   chat.Snapshot  `json:"session"`
}

// handleCreateSession 创建会话（挂载聊天窗口）
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		respondChatError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session.Snapshot())
}

// handleGetSession 返回会话快照
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Snapshot())
}

// handleCloseSession 关闭会话（卸载聊天窗口）
func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.CloseSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondChatError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetDraft 更新输入框草稿
func (h *Handler) handleSetDraft(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload draftRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Text == nil {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	if err := session.SetDraft(*payload.Text); err != nil {
		respondChatError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Snapshot())
}

// handleSubmit 提交草稿并等待回复
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload draftRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// 客户端断开不会取消回复，只有关闭会话才会
	ctx := context.WithoutCancel(r.Context())
	var (
		sub chatService.Submission
		err error
	)
	if payload.Text != nil {
		sub, err = session.SubmitText(ctx, *payload.Text)
	} else {
		sub, err = session.Submit(ctx)
	}
	if err != nil {
		respondChatError(w, err)
		return
	}

	resp := submitResponse{
		User:      sub.User,
		Replies:   sub.Replies,
		Discarded: sub.Discarded,
		Session:   session.Snapshot(),
	}
	if resp.Replies == nil {
		resp.Replies = []chat.Message{}
	}
	if sub.Err != nil {
		resp.Error = sub.Err.Error()
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*chatService.Session, bool) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondChatError(w, err)
		return nil, false
	}
	return session, true
}

func respondChatError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, chatService.ErrSessionClosed):
		status = http.StatusGone
	case errors.Is(err, chatService.ErrEmptyDraft):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, chatService.ErrSubmitInFlight):
		status = http.StatusConflict
	default:
		log.Printf("[chat] unexpected error: %v", err)
	}
	utils.RespondError(w, status, err.Error())
}
