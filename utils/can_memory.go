package utils

import (
	"context"
	"io"
	"sync"

	"go.einride.tech/can"
)

// MemoryBus is an in-process CAN bus. Frames passed to Inject are returned by
// ReadFrame; frames passed to WriteFrame are recorded for Sent.
type MemoryBus struct {
	rx chan can.Frame

	mu     sync.Mutex
	sent   []can.Frame
	closed bool
	done   chan struct{}
}

func NewMemoryBus(buffer int) *MemoryBus {
	return &MemoryBus{rx: make(chan can.Frame, buffer), done: make(chan struct{})}
}

// Inject queues a frame for ReadFrame, blocking when the buffer is full.
func (b *MemoryBus) Inject(frame can.Frame) {
	select {
	case b.rx <- frame:
	case <-b.done:
	}
}

func (b *MemoryBus) ReadFrame(ctx context.Context) (can.Frame, error) {
	select {
	case <-ctx.Done():
		return can.Frame{}, ctx.Err()
	case <-b.done:
		return can.Frame{}, io.EOF
	case f := <-b.rx:
		return f, nil
	}
}

func (b *MemoryBus) WriteFrame(ctx context.Context, frame can.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return io.ErrClosedPipe
	}
	b.sent = append(b.sent, frame)
	return nil
}

// Sent returns a copy of every written frame.
func (b *MemoryBus) Sent() []can.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]can.Frame(nil), b.sent...)
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
	return nil
}
