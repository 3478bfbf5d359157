package http

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/seralis/chatpilot/internal/domain/conversation"
)

// CreateConversation handles POST /api/v1/conversations
func (h *Handlers) CreateConversation(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[conversation.CreateRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if req.Title == "" {
		req.Title = "New conversation"
	}
	conv, err := h.Store.CreateConversation(r.Context(), &conversation.Conversation{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		BotID:     req.BotID,
		Title:     req.Title,
	})
	if err != nil {
		writeDomainError(w, err, "create conversation")
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// ListConversations handles GET /api/v1/conversations
func (h *Handlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.Store.ListConversations(r.Context())
	if err != nil {
		writeDomainError(w, err, "list conversations")
		return
	}
	if conversations == nil {
		conversations = []conversation.Conversation{}
	}
	writeJSON(w, http.StatusOK, conversations)
}

// GetConversation handles GET /api/v1/conversations/{conversationID}
func (h *Handlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.Store.GetConversation(r.Context(), urlParam(r, "conversationID"))
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// DeleteConversation handles DELETE /api/v1/conversations/{conversationID}
func (h *Handlers) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "conversationID")
	h.Turns.Stop(id)
	if err := h.Store.DeleteConversation(r.Context(), id); err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMessages handles GET /api/v1/conversations/{conversationID}/messages.
// Assistant messages are hydrated from their event logs when the persisted
// snapshot predates content parts.
func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	records, err := h.History.ListMessages(r.Context(), urlParam(r, "conversationID"))
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	if records == nil {
		records = []conversation.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// SendMessage handles POST /api/v1/conversations/{conversationID}/messages.
// The assistant placeholder is returned immediately; events stream over the
// SSE endpoint and the WebSocket hub.
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[conversation.SendMessageRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	rec, err := h.Turns.SendMessage(r.Context(), urlParam(r, "conversationID"), req)
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusAccepted, rec)
}

// StopConversation handles POST /api/v1/conversations/{conversationID}/stop.
func (h *Handlers) StopConversation(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "conversationID")
	stopped := h.Turns.Stop(id)
	if !stopped {
		writeError(w, http.StatusNotFound, "no active turn for this conversation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "conversation_id": id})
}

// GetTranscript handles GET /api/v1/messages/{messageID}/transcript: the
// plain concatenated text of one assistant message, for the copy action.
func (h *Handlers) GetTranscript(w http.ResponseWriter, r *http.Request) {
	text, err := h.History.Transcript(r.Context(), urlParam(r, "messageID"))
	if err != nil {
		writeDomainError(w, err, "message not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// GetWelcome handles GET /api/v1/welcome.
func (h *Handlers) GetWelcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Welcome.Guide(r.Context()))
}
