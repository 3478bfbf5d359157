package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// TurnLimiter throttles turn starts per conversation. A streaming turn is
// expensive upstream, so each conversation gets a small fixed-window quota
// instead of a per-IP bucket: one client hammering regenerate should not eat
// the upstream budget.
type TurnLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	per     time.Duration
}

type window struct {
	count   int
	resetAt time.Time
}

// NewTurnLimiter allows limit turn starts per conversation in each window of
// the given duration.
func NewTurnLimiter(limit int, per time.Duration) *TurnLimiter {
	return &TurnLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		per:     per,
	}
}

// Handler enforces the quota on routes carrying a {conversationID} URL param.
func (tl *TurnLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "conversationID")
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}

		allowed, retryAfter := tl.allow(id, time.Now())
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many turns, slow down"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (tl *TurnLimiter) allow(id string, now time.Time) (bool, time.Duration) {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	win, ok := tl.windows[id]
	if !ok || now.After(win.resetAt) {
		tl.windows[id] = &window{count: 1, resetAt: now.Add(tl.per)}
		return true, 0
	}
	if win.count >= tl.limit {
		return false, win.resetAt.Sub(now)
	}
	win.count++
	return true, 0
}

// Sweep removes expired windows. Callers run it periodically so idle
// conversations do not accumulate forever.
func (tl *TurnLimiter) Sweep(now time.Time) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	for id, win := range tl.windows {
		if now.After(win.resetAt) {
			delete(tl.windows, id)
		}
	}
}

// Len reports the number of tracked conversations, for tests.
func (tl *TurnLimiter) Len() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return len(tl.windows)
}
