package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/muser-music/muser/backend/internal/handler/chat"
	"github.com/muser-music/muser/backend/internal/handler/stream"
	"github.com/muser-music/muser/backend/internal/handler/ws"
	middlewarePkg "github.com/muser-music/muser/backend/internal/middleware"
	chatService "github.com/muser-music/muser/backend/internal/service/chat"
	"github.com/muser-music/muser/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": chatSvc.Len(),
		})
	})

	// Create handlers
	chatHandler := chat.New(chatSvc)
	streamHandler := stream.New(chatSvc)
	wsHandler := ws.New(chatSvc)

	r.Route("/api", func(api chi.Router) {
		// Register chat routes
		chatHandler.RegisterRoutes(api)

		// Transcript views: server-sent events and websocket
		streamHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
	})

	return r
}
