package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seralis/chatpilot/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	turnLimit := middleware.NewTurnLimiter(10, time.Minute)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/welcome", h.GetWelcome)

		// Conversations
		r.Post("/conversations", h.CreateConversation)
		r.Get("/conversations", h.ListConversations)
		r.Get("/conversations/{conversationID}", h.GetConversation)
		r.Delete("/conversations/{conversationID}", h.DeleteConversation)
		r.Get("/conversations/{conversationID}/messages", h.ListMessages)
		r.With(turnLimit.Handler).
			Post("/conversations/{conversationID}/messages", h.SendMessage)
		r.Post("/conversations/{conversationID}/stop", h.StopConversation)

		// Messages
		r.Get("/messages/{messageID}/events", h.StreamEvents)
		r.Get("/messages/{messageID}/transcript", h.GetTranscript)

		// Excel templates
		r.Post("/excel/template", h.BuildTemplate)
		r.Post("/excel/import", h.ImportWorkbook)
	})

	// WebSocket endpoint for live event fan-out
	r.Get("/ws", h.Hub.HandleWS)
}
