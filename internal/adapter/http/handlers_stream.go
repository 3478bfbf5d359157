package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/seralis/chatpilot/internal/agui"
)

// sseHeartbeat keeps idle proxies from closing the stream.
const sseHeartbeat = 15 * time.Second

// StreamEvents handles GET /api/v1/messages/{messageID}/events: a
// server-sent-events stream of the AG-UI events of an in-flight turn.
// The stream closes when the turn ends or the client disconnects.
func (h *Handlers) StreamEvents(w http.ResponseWriter, r *http.Request) {
	messageID := urlParam(r, "messageID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, unsubscribe := h.Turns.Subscribe(messageID)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case ev, open := <-events:
			if !open {
				// Turn finished; tell well-behaved clients to stop
				// reconnecting.
				_, _ = w.Write([]byte("data: [DONE]\n\n"))
				flusher.Flush()
				return
			}
			frame, err := agui.EncodeSSE(ev)
			if err != nil {
				slog.Error("sse encode failed", "message_id", messageID, "error", err)
				continue
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
