package audio

import (
	"context"
	"time"
)

// DefaultBridgeCapacity is the number of messages the bridge holds before
// the producer has to wait.
const DefaultBridgeCapacity = 64

// Sink receives messages from a capture source
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// Bridge carries messages from exactly one capture goroutine to exactly one
// processing goroutine, in order and without dropping any.
type Bridge struct {
	ch chan Message
}

// NewBridge creates a bridge. A capacity below 1 uses DefaultBridgeCapacity.
func NewBridge(capacity int) *Bridge {
	if capacity < 1 {
		capacity = DefaultBridgeCapacity
	}
	return &Bridge{ch: make(chan Message, capacity)}
}

// Send queues msg, waiting for room while ctx is alive. A message that fits
// right away is accepted even if ctx is already done, so a source can still
// hand over its last chunk while being stopped.
func (b *Bridge) Send(ctx context.Context, msg Message) error {
	select {
	case b.ch <- msg:
		return nil
	default:
	}

	select {
	case b.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the producer side as gone. Only the producer may call it, once.
func (b *Bridge) Close() {
	close(b.ch)
}

// TryReceive returns the next message if one is queued. It never blocks; a
// closed and drained bridge reports no message.
func (b *Bridge) TryReceive() (Message, bool) {
	select {
	case msg, ok := <-b.ch:
		return msg, ok
	default:
		return Message{}, false
	}
}

// ReceiveTimeout waits up to d for the next message
func (b *Bridge) ReceiveTimeout(d time.Duration) (Message, bool) {
	if msg, ok := b.TryReceive(); ok {
		return msg, true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case msg, ok := <-b.ch:
		if !ok {
			// Closed: don't spin on it, let the caller see the poll interval elapse
			<-timer.C
		}
		return msg, ok
	case <-timer.C:
		return Message{}, false
	}
}

// Len reports how many messages are queued
func (b *Bridge) Len() int {
	return len(b.ch)
}
