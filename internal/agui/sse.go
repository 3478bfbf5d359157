package agui

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// EncodeSSE renders an event as a server-sent-events frame: "data: {...}\n\n".
func EncodeSSE(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode agui event: %w", err)
	}
	buf := make([]byte, 0, len(data)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, data...)
	buf = append(buf, '\n', '\n')
	return buf, nil
}

// SSEReader decodes AG-UI events from a server-sent-events stream.
// Non-data lines (comments, event names, blank separators) are skipped.
type SSEReader struct {
	sc *bufio.Scanner
}

// NewSSEReader wraps r in an SSE event decoder. Lines longer than 1 MiB are
// an error.
func NewSSEReader(r io.Reader) *SSEReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &SSEReader{sc: sc}
}

// Next returns the next event from the stream, or io.EOF when the stream ends.
// The special "[DONE]" sentinel some producers emit also terminates the stream.
func (r *SSEReader) Next() (Event, error) {
	for r.sc.Scan() {
		line := strings.TrimSpace(r.sc.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			if payload == "[DONE]" {
				return Event{}, io.EOF
			}
			continue
		}
		return Decode([]byte(payload))
	}
	if err := r.sc.Err(); err != nil {
		return Event{}, fmt.Errorf("read sse stream: %w", err)
	}
	return Event{}, io.EOF
}
