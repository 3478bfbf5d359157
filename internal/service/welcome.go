package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/seralis/chatpilot/internal/adapter/ristretto"
)

const welcomeCacheKey = "welcome:v1"

// Guide is the welcome payload shown before the first message of a
// conversation: an opener plus suggestion chips the client can send as-is.
type Guide struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Suggestions []string `json:"suggestions"`
}

// WelcomeService serves the conversation opener, cached in-process since the
// payload is identical for every client.
type WelcomeService struct {
	cache *ristretto.Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewWelcomeService creates a WelcomeService.
func NewWelcomeService(cache *ristretto.Cache, ttl time.Duration, log *slog.Logger) *WelcomeService {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &WelcomeService{cache: cache, ttl: ttl, log: log}
}

// Guide returns the welcome guide, from cache when warm.
func (s *WelcomeService) Guide(ctx context.Context) Guide {
	if s.cache != nil {
		if data, ok, _ := s.cache.Get(ctx, welcomeCacheKey); ok {
			var g Guide
			if err := json.Unmarshal(data, &g); err == nil {
				return g
			}
		}
	}

	g := defaultGuide()

	if s.cache != nil {
		if data, err := json.Marshal(g); err == nil {
			if err := s.cache.Set(ctx, welcomeCacheKey, data, s.ttl); err != nil {
				s.log.Warn("welcome cache set failed", "error", err)
			}
		}
	}
	return g
}

func defaultGuide() Guide {
	return Guide{
		Title:   "Hi, I'm your operations assistant",
		Content: "Ask me about incidents, runbooks or recent changes. I can look things up, run tools and summarize what I find.",
		Suggestions: []string{
			"Summarize the open incidents from the last 24 hours",
			"Which services had deploys today?",
			"Show me the runbook for a database failover",
		},
	}
}
