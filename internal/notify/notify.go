// Package notify delivers end-of-run messages to external systems. Concrete
// transports live in subpackages.
package notify

import "context"

// Message is one notification.
type Message struct {
	// ID deduplicates redeliveries; the pipeline uses the run id.
	ID          string
	ContentType string
	Body        []byte
}

// Notifier sends messages. Implementations must be safe to Close once.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
	Close() error
}

// Nop discards every message.
type Nop struct{}

func (Nop) Notify(context.Context, Message) error { return nil }
func (Nop) Close() error                          { return nil }
