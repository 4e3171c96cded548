package ringbuffer

import "testing"

func TestRingBufferFIFOOrder(t *testing.T) {
	rb := New[int](3)
	if !rb.IsEmpty() {
		t.Fatalf("expected empty buffer")
	}
	for _, v := range []int{1, 2, 3} {
		if !rb.PushBack(v) {
			t.Fatalf("push %d failed unexpectedly", v)
		}
	}
	if !rb.IsFull() {
		t.Fatalf("expected full buffer")
	}
	if rb.PushBack(4) {
		t.Fatalf("push on full buffer should fail")
	}

	for _, want := range []int{1, 2, 3} {
		got, ok := rb.PopFront()
		if !ok {
			t.Fatalf("pop failed unexpectedly")
		}
		if got != want {
			t.Fatalf("got %d, want %d", got, want)
		}
	}
	if !rb.IsEmpty() {
		t.Fatalf("expected empty buffer after draining")
	}
	if _, ok := rb.PopFront(); ok {
		t.Fatalf("pop on empty buffer should fail")
	}
}

func TestRingBufferWrapAround(t *testing.T) {
	rb := New[int](2)
	rb.PushBack(1)
	rb.PushBack(2)
	if v, _ := rb.PopFront(); v != 1 {
		t.Fatalf("got %d, want 1", v)
	}
	rb.PushBack(3)
	if rb.Size() != 2 {
		t.Fatalf("got size %d, want 2", rb.Size())
	}
	v, _ := rb.PopFront()
	if v != 2 {
		t.Fatalf("got %d, want 2", v)
	}
	v, _ = rb.PopFront()
	if v != 3 {
		t.Fatalf("got %d, want 3", v)
	}
}

func TestRingBufferClearData(t *testing.T) {
	rb := New[int](2)
	rb.PushBack(1)
	rb.PushBack(2)
	rb.ClearData()
	if !rb.IsEmpty() || rb.Size() != 0 {
		t.Fatalf("expected empty buffer after ClearData")
	}
	if !rb.PushBack(5) {
		t.Fatalf("push after clear should succeed")
	}
}

func TestRingBufferZeroCapacity(t *testing.T) {
	rb := New[int](0)
	if !rb.IsEmpty() {
		t.Fatalf("zero-capacity buffer should be empty")
	}
	if rb.PushBack(1) {
		t.Fatalf("push on zero-capacity buffer should fail")
	}
}
