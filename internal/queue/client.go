package queue

import (
	"context"
	"sync"
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Recorder keeps sent messages in memory. Used when no queue is configured
// in dev and by tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

// Send records msg unless Err is set.
func (r *Recorder) Send(_ context.Context, msg Message) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

// Sent returns a copy of every recorded message.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.sent))
	copy(out, r.sent)
	return out
}

var _ Client = (*Recorder)(nil)
