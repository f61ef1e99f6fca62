package bridge

import "sync"

// recvBuffer is the shared receive queue: every client's data handler
// appends to it, and the bridge drains it once per tick toward the serial
// stream. Client handlers run on their connections' read goroutines, so the
// buffer carries its own lock.
type recvBuffer struct {
	mu      sync.Mutex
	buf     []byte
	reserve int
}

// newRecvBuffer creates a buffer with the given reserved capacity. The
// reservation is an optimization, not a cap; the buffer grows when clients
// send faster than the bridge drains.
func newRecvBuffer(reserve int) *recvBuffer {
	if reserve < 0 {
		reserve = 0
	}

	return &recvBuffer{
		buf:     make([]byte, 0, reserve),
		reserve: reserve,
	}
}

// Append adds p to the queue in arrival order. Empty input is a no-op.
func (b *recvBuffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}

	b.mu.Lock()
	b.buf = append(b.buf, p...)
	b.mu.Unlock()
}

// Drain returns the queued bytes and leaves the buffer empty. Returns nil
// when nothing is queued. The returned slice is owned by the caller.
func (b *recvBuffer) Drain() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.buf) == 0 {
		return nil
	}

	out := b.buf
	b.buf = make([]byte, 0, b.reserve)
	return out
}

// Len returns the number of queued bytes.
func (b *recvBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}
