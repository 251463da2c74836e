package host

import (
	"io"
	"sync"
)

// ringBuffer is the byte queue between the emulation goroutine and oto.
// Writes never block and drop the oldest bytes on overflow; reads block
// until data arrives or the buffer is closed.
type ringBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	head   int // next byte to read
	count  int
	closed bool
}

func newRingBuffer(capacity int) *ringBuffer {
	rb := &ringBuffer{buf: make([]byte, capacity)}
	rb.cond = sync.NewCond(&rb.mu)
	return rb
}

// Write queues p. Only the newest len(buf) bytes survive an overflow.
func (rb *ringBuffer) Write(p []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	capacity := len(rb.buf)
	if rb.closed || len(p) == 0 {
		return
	}
	if len(p) > capacity {
		p = p[len(p)-capacity:]
	}
	if drop := rb.count + len(p) - capacity; drop > 0 {
		rb.head = (rb.head + drop) % capacity
		rb.count -= drop
	}

	tail := (rb.head + rb.count) % capacity
	n := copy(rb.buf[tail:], p)
	copy(rb.buf, p[n:])
	rb.count += len(p)
	rb.cond.Signal()
}

// Read implements io.Reader for oto's pull model.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for rb.count == 0 {
		if rb.closed {
			return 0, io.EOF
		}
		rb.cond.Wait()
	}

	n := min(len(p), rb.count)
	first := copy(p[:n], rb.buf[rb.head:])
	copy(p[first:n], rb.buf)
	rb.head = (rb.head + n) % len(rb.buf)
	rb.count -= n
	return n, nil
}

// Buffered returns the number of queued bytes.
func (rb *ringBuffer) Buffered() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Clear drops everything queued.
func (rb *ringBuffer) Clear() {
	rb.mu.Lock()
	rb.head, rb.count = 0, 0
	rb.mu.Unlock()
}

// Close wakes blocked readers. Reads drain what is left and then return
// io.EOF.
func (rb *ringBuffer) Close() {
	rb.mu.Lock()
	rb.closed = true
	rb.cond.Broadcast()
	rb.mu.Unlock()
}
