package chat

import (
	"errors"
	"strings"

	"github.com/seralis/chatpilot/internal/resilience"
)

// NormalizeProviderError maps a raw upstream failure onto a short,
// user-presentable message. Provider SDK errors tend to embed HTTP status
// codes in their text, so matching on "Error code: NNN" covers the common
// proxies.
func NormalizeProviderError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return "The model service is temporarily unavailable. Please try again shortly."
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "Error code: 502"):
		return "The model service is temporarily unavailable (502). Check the model configuration or retry later."
	case strings.Contains(msg, "Error code: 503"):
		return "The model service is overloaded (503). Please retry later."
	case strings.Contains(msg, "Error code: 504"):
		return "The model service timed out (504). Please retry later."
	case strings.Contains(msg, "Error code: 401"):
		return "The model API key was rejected (401). Check the model configuration."
	case strings.Contains(msg, "Error code: 429"):
		return "Too many requests to the model service (429). Please retry later."
	case strings.Contains(msg, "Connection"), strings.Contains(strings.ToLower(msg), "timeout"):
		return "Could not reach the model service: " + msg
	}
	return "The assistant run failed: " + msg
}
