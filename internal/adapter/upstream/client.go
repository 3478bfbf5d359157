// Package upstream implements the producer port against a chat-completion
// streaming API that emits AG-UI events as server-sent events.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/seralis/chatpilot/internal/agui"
	"github.com/seralis/chatpilot/internal/config"
	"github.com/seralis/chatpilot/internal/port/producer"
	"github.com/seralis/chatpilot/internal/resilience"
)

// Client streams AG-UI events from the upstream chat-completion endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	breaker    *resilience.Breaker
	log        *slog.Logger
}

// NewClient creates an upstream streaming client from config.
func NewClient(cfg config.Upstream, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			// Per-turn deadline; streaming reads need a long timeout.
			Timeout: cfg.Timeout,
		},
		log: log,
	}
}

// SetBreaker attaches a circuit breaker to stream initiation.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// chatRequest is the upstream request body.
type chatRequest struct {
	BotID     string `json:"bot_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Model     string `json:"model,omitempty"`
	UserInput string `json:"user_message"`
	Stream    bool   `json:"stream"`
}

// Stream opens the SSE stream for one turn and decodes it into events.
// A transport failure mid-stream surfaces as a RUN_ERROR event so the
// consumer always observes a terminal event before the channel closes.
func (c *Client) Stream(ctx context.Context, req producer.Request) (<-chan agui.Event, error) {
	body, err := json.Marshal(chatRequest{
		BotID:     req.ConversationID,
		SessionID: req.SessionID,
		Model:     c.modelFor(req),
		UserInput: req.UserInput,
		Stream:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("encode stream request: %w", err)
	}

	var resp *http.Response
	open := func() error {
		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/stream", bytes.NewReader(body))
		if reqErr != nil {
			return reqErr
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, reqErr = c.httpClient.Do(httpReq) //nolint:bodyclose // closed by the reader goroutine
		if reqErr != nil {
			return reqErr
		}
		if resp.StatusCode != http.StatusOK {
			defer func() { _ = resp.Body.Close() }()
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("upstream stream: Error code: %d: %s", resp.StatusCode, snippet)
		}
		return nil
	}

	if c.breaker != nil {
		err = c.breaker.Execute(open)
	} else {
		err = open()
	}
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}

	out := make(chan agui.Event)
	go c.readLoop(ctx, req, resp.Body, out)
	return out, nil
}

func (c *Client) readLoop(ctx context.Context, req producer.Request, body io.ReadCloser, out chan<- agui.Event) {
	defer close(out)
	defer func() { _ = body.Close() }()

	reader := agui.NewSSEReader(body)
	for {
		ev, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}
			c.log.Error("upstream stream read failed", "message_id", req.MessageID, "error", err)
			emit(ctx, out, agui.Event{
				Kind:      agui.KindRunError,
				MessageID: req.MessageID,
				Message:   err.Error(),
				Code:      "STREAM_ERROR",
				Timestamp: time.Now().UnixMilli(),
			})
			return
		}
		if ev.MessageID == "" {
			ev.MessageID = req.MessageID
		}
		if !emit(ctx, out, ev) {
			return
		}
	}
}

func emit(ctx context.Context, out chan<- agui.Event, ev agui.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) modelFor(req producer.Request) string {
	if req.Model != "" {
		return req.Model
	}
	return c.model
}
