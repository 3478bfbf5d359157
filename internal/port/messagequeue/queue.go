// Package messagequeue defines the message queue port.
package messagequeue

import "context"

// Publisher sends messages to a subject on the queue.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}
