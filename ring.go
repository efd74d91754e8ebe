package udpfec

import (
	"encoding/binary"
	"sync"
)

// defaultCircularBufferUnit is the scale factor applied to a
// user-supplied circular_buffer_size option (spec §4.7): the ring's
// byte capacity is userValue * defaultCircularBufferUnit.
const defaultCircularBufferUnit = 188

// defaultRingCapacity is the ring's default byte capacity when no
// circular_buffer_size option is given: 7 * 4096 * 188 (spec §4.6).
const defaultRingCapacity = 7 * 4096 * defaultCircularBufferUnit

// ringMinCapacity is the floor a configured capacity is clamped to.
const ringMinCapacity = 8

// ringBuffer is a fixed-capacity byte FIFO holding length-prefixed
// records (spec §4.6): [u32 LE length][length bytes]. One mutex plus
// one condition variable guards it, matching spec §5's concurrency
// model directly rather than going through channels.
type ringBuffer struct {
	mu   sync.Mutex
	cond *sync.Cond

	buf  []byte
	head int // next byte to read
	size int // bytes currently stored

	closeReq bool
	err      error // latched circular_buffer_error
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < ringMinCapacity {
		capacity = ringMinCapacity
	}
	r := &ringBuffer{buf: make([]byte, capacity)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

func (r *ringBuffer) free() int {
	return len(r.buf) - r.size
}

// pushRecord appends one length-prefixed record. Returns ErrClosed if
// the ring has been closed, ErrBufferFull if the record would not
// fit. Signals the condition variable on success.
func (r *ringBuffer) pushRecord(payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closeReq {
		return ErrClosed
	}
	if r.err != nil {
		return r.err
	}

	need := 4 + len(payload)
	if need > r.free() {
		return ErrBufferFull
	}

	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(payload)))
	r.writeBytes(lenBytes[:])
	r.writeBytes(payload)

	r.cond.Signal()
	return nil
}

// writeBytes copies b into the circular storage starting at the
// current tail, advancing size. Caller holds the mutex.
func (r *ringBuffer) writeBytes(b []byte) {
	tail := (r.head + r.size) % len(r.buf)
	n := copy(r.buf[tail:], b)
	if n < len(b) {
		copy(r.buf, b[n:])
	}
	r.size += len(b)
}

// readBytes copies n bytes out of the circular storage starting at
// head, advancing head and shrinking size. Caller holds the mutex and
// has already verified n <= r.size.
func (r *ringBuffer) readBytes(n int) []byte {
	out := make([]byte, n)
	m := copy(out, r.buf[r.head:])
	if m < n {
		copy(out[m:], r.buf[:n-m])
	}
	r.head = (r.head + n) % len(r.buf)
	r.size -= n
	return out
}

// popRecord removes and returns one record, blocking until one is
// available, the ring is closed, or a latched error is observed.
func (r *ringBuffer) popRecord() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.size < 4 && !r.closeReq && r.err == nil {
		r.cond.Wait()
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.size < 4 {
		return nil, ErrClosed
	}

	lenBytes := r.readBytes(4)
	n := int(binary.LittleEndian.Uint32(lenBytes))
	for r.size < n && !r.closeReq && r.err == nil {
		r.cond.Wait()
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.size < n {
		return nil, ErrClosed
	}
	return r.readBytes(n), nil
}

// tryPopRecord is the non-blocking variant used by TryRead in async
// mode: returns ErrWouldBlock immediately if no full record is queued.
func (r *ringBuffer) tryPopRecord() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}
	if r.size < 4 {
		if r.closeReq {
			return nil, ErrClosed
		}
		return nil, ErrWouldBlock
	}

	// Peek the length without consuming, in case the body hasn't
	// fully arrived yet.
	peekLen := make([]byte, 4)
	for i := 0; i < 4; i++ {
		peekLen[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	n := int(binary.LittleEndian.Uint32(peekLen))
	if r.size < 4+n {
		if r.closeReq {
			return nil, ErrClosed
		}
		return nil, ErrWouldBlock
	}

	r.readBytes(4)
	return r.readBytes(n), nil
}

// setErr latches a fatal error observed by the worker; the next
// facade call surfaces it (spec §4.6, §7).
func (r *ringBuffer) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.cond.Broadcast()
	r.mu.Unlock()
}

// close signals the close request and wakes any blocked waiter.
func (r *ringBuffer) close() {
	r.mu.Lock()
	r.closeReq = true
	r.cond.Broadcast()
	r.mu.Unlock()
}
