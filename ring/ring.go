// ring.go
//
// Lock-free single-producer/single-consumer ring buffer for fixed-shape
// records. The structure deliberately separates the producer and consumer
// cursors with full cache-lines to eliminate false-sharing, and one slot is
// permanently reserved so head==tail is unambiguously "empty": a ring built
// with size N holds at most N-1 elements.
//
// ⚠️ SPSC ONLY. Exactly one goroutine may call Push and exactly one (possibly
// different) goroutine may call Pop. The cursor discipline below is the entire
// correctness argument and it collapses the moment a second producer or
// consumer appears. There is no lock and no CAS loop to save you.
//
// Ordering: each side reads its own cursor plainly-via-atomic (only it writes
// that cursor), reads the peer's cursor with an acquiring load, and publishes
// its advance with a releasing store. The acquire/release pair guarantees the
// slot contents written before the publish are visible before the peer reads
// them. Go's sync/atomic provides at least that much on every platform.

package ring

import "sync/atomic"

// Ring is a fixed-capacity circular buffer dedicated to one producer and one
// consumer. The zero value is not usable; call New.
type Ring[T any] struct {
	_ [64]byte // keep head off the allocator's preceding object
	// head is the consumer cursor: index of the next slot to Pop.
	head atomic.Uint64
	_    [56]byte // head and tail on different cache-lines
	// tail is the producer cursor: index of the next slot to fill.
	tail atomic.Uint64
	_    [56]byte // tail isolated from the cold metadata below

	mask uint64
	buf  []T
}

// New allocates a ring whose size must be a power of two greater than one;
// otherwise it panics so the bit-masking arithmetic stays valid. Usable
// capacity is size-1.
func New[T any](size int) *Ring[T] {
	if size <= 1 || size&(size-1) != 0 {
		panic("ring: size must be >1 and a power of two")
	}
	return &Ring[T]{
		mask: uint64(size - 1),
		buf:  make([]T, size),
	}
}

// Push enqueues v, returning false if the buffer is full. Never blocks, never
// allocates; a false return means the record was not stored and the caller
// decides whether to drop or retry.
func (r *Ring[T]) Push(v T) bool {
	t := r.tail.Load() // own cursor, no ordering needed
	next := (t + 1) & r.mask
	if next == r.head.Load() { // acquire: pairs with Pop's publish
		return false // full, one slot stays reserved
	}
	r.buf[t] = v       // slot is private until the publish below
	r.tail.Store(next) // release: hands the slot to the consumer
	return true
}

// Pop dequeues the oldest record. The second return is false when the buffer
// is empty.
func (r *Ring[T]) Pop() (T, bool) {
	h := r.head.Load()      // own cursor
	if h == r.tail.Load() { // acquire: pairs with Push's publish
		var zero T
		return zero, false
	}
	v := r.buf[h]
	var zero T
	r.buf[h] = zero                // drop references so the GC can reclaim payloads
	r.head.Store((h + 1) & r.mask) // release: returns the slot to the producer
	return v, true
}

// PushEvict enqueues v unconditionally, discarding the oldest queued record
// when the buffer is full. It reports whether an eviction happened.
//
// ⚠️ Opt-in policy with a stricter contract than Push: because eviction moves
// the consumer cursor from the producer side, PushEvict must never run
// concurrently with Pop. It exists for single-threaded drains and tooling,
// not for the live pipeline, which uses fail-fast Push.
func (r *Ring[T]) PushEvict(v T) bool {
	evicted := false
	t := r.tail.Load()
	next := (t + 1) & r.mask
	if next == r.head.Load() {
		h := r.head.Load()
		r.head.Store((h + 1) & r.mask)
		evicted = true
	}
	r.buf[t] = v
	r.tail.Store(next)
	return evicted
}

// Size returns the number of queued records. Exact only from the producer or
// consumer thread; from anywhere else it is a point-in-time estimate.
func (r *Ring[T]) Size() int {
	t := r.tail.Load()
	h := r.head.Load()
	return int((t - h) & r.mask)
}

// Capacity returns the usable capacity, size-1.
func (r *Ring[T]) Capacity() int {
	return int(r.mask)
}

// Empty reports whether no records are queued.
func (r *Ring[T]) Empty() bool {
	return r.head.Load() == r.tail.Load()
}
