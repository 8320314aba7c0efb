package ring

import (
	"fmt"
	"testing"
)

// TestNewPanicsOnBadSize verifies that the constructor rejects sizes that are
// either non-power-of-two or too small to hold anything once the reserved
// slot is accounted for.
func TestNewPanicsOnBadSize(t *testing.T) {
	bad := []int{-1, 0, 1, 3, 6, 1000}
	for _, sz := range bad {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("New(%d) should panic", sz)
				}
			}()
			_ = New[int](sz)
		}()
	}
}

// TestPushPopRoundTrip performs a minimal sanity round-trip on a size-8 ring.
func TestPushPopRoundTrip(t *testing.T) {
	r := New[int](8)
	if !r.Push(42) {
		t.Fatal("first push must succeed")
	}
	v, ok := r.Pop()
	if !ok || v != 42 {
		t.Fatalf("got (%d,%v), want (42,true)", v, ok)
	}
	if _, ok := r.Pop(); ok {
		t.Fatal("ring should now be empty")
	}
}

// TestCapacityReservedSlot pins the N-1 usable-capacity contract on a size-8
// ring: seven pushes succeed, the eighth fails, and one pop makes room for
// exactly one more.
func TestCapacityReservedSlot(t *testing.T) {
	r := New[int](8)
	if got := r.Capacity(); got != 7 {
		t.Fatalf("capacity = %d, want 7", got)
	}
	for i := 0; i < 7; i++ {
		if !r.Push(i) {
			t.Fatalf("push %d unexpectedly failed", i)
		}
	}
	if r.Push(7) {
		t.Fatal("push into full ring should return false")
	}
	if v, ok := r.Pop(); !ok || v != 0 {
		t.Fatalf("pop = (%d,%v), want (0,true)", v, ok)
	}
	if !r.Push(7) {
		t.Fatal("push after one pop should succeed")
	}
}

// TestSizeTracksCursorDistance walks a mixed push/pop sequence across the
// wrap-around boundary and checks Size against an independently maintained
// count after every operation.
func TestSizeTracksCursorDistance(t *testing.T) {
	r := New[int](8)
	count := 0
	next := 0
	for step := 0; step < 100; step++ {
		if step%3 != 2 { // two pushes for every pop, forcing full states
			if r.Push(next) {
				next++
				count++
			} else if count != 7 {
				t.Fatalf("step %d: push failed with %d queued", step, count)
			}
		} else {
			if _, ok := r.Pop(); ok {
				count--
			} else if count != 0 {
				t.Fatalf("step %d: pop failed with %d queued", step, count)
			}
		}
		if got := r.Size(); got != count {
			t.Fatalf("step %d: size = %d, want %d", step, got, count)
		}
	}
}

// TestSPSCOrderingUnderConcurrency runs a real producer goroutine against a
// real consumer goroutine and asserts every value arrives exactly once, in
// push order. The producer retries on full, so no overflow drops can excuse
// a gap.
func TestSPSCOrderingUnderConcurrency(t *testing.T) {
	const total = 100000
	r := New[int](64)
	done := make(chan error, 1)

	go func() {
		expect := 0
		for expect < total {
			v, ok := r.Pop()
			if !ok {
				continue
			}
			if v != expect {
				done <- fmt.Errorf("popped %d, want %d", v, expect)
				return
			}
			expect++
		}
		done <- nil
	}()

	for i := 0; i < total; i++ {
		for !r.Push(i) {
		}
	}

	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if !r.Empty() {
		t.Fatal("ring should be empty after the drain")
	}
}

// TestPushEvictDropsOldest checks the opt-in overwrite policy: filling the
// ring and evict-pushing one more drops the head record, keeps the ring full,
// and preserves order among the survivors.
func TestPushEvictDropsOldest(t *testing.T) {
	r := New[int](8)
	for i := 0; i < 7; i++ {
		r.Push(i)
	}
	if !r.PushEvict(7) {
		t.Fatal("PushEvict on a full ring must report an eviction")
	}
	if got := r.Size(); got != 7 {
		t.Fatalf("size after evict = %d, want 7", got)
	}
	for want := 1; want <= 7; want++ {
		v, ok := r.Pop()
		if !ok || v != want {
			t.Fatalf("pop = (%d,%v), want (%d,true)", v, ok, want)
		}
	}
	if r.PushEvict(99) {
		t.Fatal("PushEvict with free space must not evict")
	}
}
