package audio

import (
	"context"
	"errors"
	"sync"
)

// ErrChannelClosed is returned when pushing to or pulling from a closed
// frame channel.
var ErrChannelClosed = errors.New("audio: frame channel closed")

// DefaultChannelCapacity bounds the number of frames buffered between
// pipeline stages. At 20ms per frame this is about four seconds.
const DefaultChannelCapacity = 200

// FrameChannel is an ordered, bounded queue of frames between two
// pipeline stages. Frames are delivered strictly in push order. A
// channel is closed exactly once; later pushes fail fast.
type FrameChannel struct {
	frames chan Frame

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewFrameChannel creates a frame channel with the given capacity.
// A capacity of zero uses DefaultChannelCapacity.
func NewFrameChannel(capacity int) *FrameChannel {
	if capacity <= 0 {
		capacity = DefaultChannelCapacity
	}
	return &FrameChannel{
		frames: make(chan Frame, capacity),
		done:   make(chan struct{}),
	}
}

// Push enqueues a frame, blocking while the channel is full.
// Returns ErrChannelClosed if the channel was closed, or the context
// error if ctx expires first.
func (c *FrameChannel) Push(ctx context.Context, f Frame) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}

	select {
	case c.frames <- f:
		return nil
	case <-c.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pull dequeues the next frame, blocking while the channel is empty.
// After Close, Pull drains any buffered frames before reporting
// ErrChannelClosed.
func (c *FrameChannel) Pull(ctx context.Context) (Frame, error) {
	select {
	case f := <-c.frames:
		return f, nil
	default:
	}

	select {
	case f := <-c.frames:
		return f, nil
	case <-c.done:
		// Closed mid-wait; a racing Push may still have landed.
		select {
		case f := <-c.frames:
			return f, nil
		default:
			return Frame{}, ErrChannelClosed
		}
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Len returns the number of frames currently buffered.
func (c *FrameChannel) Len() int {
	return len(c.frames)
}

// Close marks the channel closed. Safe to call multiple times.
func (c *FrameChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

// Closed reports whether the channel has been closed.
func (c *FrameChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
