package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/seralis/chatpilot/internal/logger"
)

func TestRequestIDGenerated(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := logger.RequestID(r.Context())
		if id == "" {
			t.Error("expected generated request ID in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	respID := rec.Header().Get("X-Request-ID")
	if respID == "" {
		t.Error("expected X-Request-ID in response header")
	}
	if len(respID) != 32 {
		t.Errorf("expected 32-char hex ID, got %d chars: %q", len(respID), respID)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	const existingID = "my-custom-id-123"

	var capturedID string
	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		capturedID = logger.RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-Request-ID", existingID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if capturedID != existingID {
		t.Errorf("expected %q in context, got %q", existingID, capturedID)
	}

	if rec.Header().Get("X-Request-ID") != existingID {
		t.Errorf("expected %q in response header, got %q", existingID, rec.Header().Get("X-Request-ID"))
	}
}

func TestRequestIDInvalidReplaced(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"control characters", "bad\nid"},
		{"spaces", "two words"},
		{"header injection attempt", "x\r\nSet-Cookie: a=b"},
		{"too long", string(make([]byte, 65))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var capturedID string
			handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				capturedID = logger.RequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set("X-Request-ID", tt.id)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if capturedID == tt.id {
				t.Errorf("invalid ID %q was accepted", tt.id)
			}
			if len(capturedID) != 32 {
				t.Errorf("expected a generated 32-char ID, got %q", capturedID)
			}
			if rec.Header().Get("X-Request-ID") != capturedID {
				t.Errorf("response header %q does not match context ID %q", rec.Header().Get("X-Request-ID"), capturedID)
			}
		})
	}
}

func TestValidRequestID(t *testing.T) {
	if !validRequestID("my-custom-id-123") {
		t.Error("expected dashed alphanumeric ID to be valid")
	}
	if !validRequestID("trace.0001_a") {
		t.Error("expected dotted/underscored ID to be valid")
	}
	if validRequestID("") {
		t.Error("expected empty ID to be invalid")
	}
}
