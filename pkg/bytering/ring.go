// Package bytering provides a bounded, drop-oldest queue of whole frames.
//
// It backs internal/diag's websocket status broadcaster: a ticker goroutine
// produces JSON status snapshots, a drain goroutine pops and forwards them
// to a connected dashboard one frame at a time. Unlike a raw byte stream, a
// status snapshot must never be delivered torn across two reads, so the
// queue is frame-at-a-time rather than byte-at-a-time, and a full queue
// sheds its oldest (stalest) snapshot instead of rejecting or blocking the
// producer -- a dashboard only ever cares about the freshest status.
package bytering

import "sync"

// FrameRing is a bounded, drop-oldest FIFO queue of byte-slice frames.
type FrameRing struct {
	mu     sync.Mutex
	frames [][]byte
	cap    int
	closed bool
}

// NewFrameRing constructs a FrameRing that retains at most capacity frames.
func NewFrameRing(capacity int) *FrameRing {
	if capacity < 1 {
		capacity = 1
	}
	return &FrameRing{cap: capacity}
}

// Push enqueues frame. The queue takes ownership of the slice; callers must
// not mutate it afterward. If the queue is already at capacity, the oldest
// buffered frame is dropped to make room for the new one, and dropped
// reports true. Push on a closed queue is a no-op.
func (fr *FrameRing) Push(frame []byte) (dropped bool) {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	if fr.closed {
		return false
	}
	if len(fr.frames) >= fr.cap {
		fr.frames = fr.frames[1:]
		dropped = true
	}
	fr.frames = append(fr.frames, frame)
	return dropped
}

// Pop removes and returns the oldest buffered frame, or (nil, closed) if the
// queue is currently empty. closed reports true only once the queue has
// been closed and its backlog fully drained, so a consumer can keep
// draining after Close until it observes closed with a nil frame.
func (fr *FrameRing) Pop() (frame []byte, closed bool) {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	if len(fr.frames) == 0 {
		return nil, fr.closed
	}
	frame = fr.frames[0]
	fr.frames[0] = nil
	fr.frames = fr.frames[1:]
	return frame, false
}

// Len returns the number of buffered frames.
func (fr *FrameRing) Len() int {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return len(fr.frames)
}

// Close marks the queue closed. Subsequent Push calls are no-ops; Pop
// continues to drain any remaining backlog.
func (fr *FrameRing) Close() {
	fr.mu.Lock()
	fr.closed = true
	fr.mu.Unlock()
}

// IsClosed reports whether Close has been called.
func (fr *FrameRing) IsClosed() bool {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return fr.closed
}
