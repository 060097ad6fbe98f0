package ring

import "testing"

func TestBufferEviction(t *testing.T) {
	b := New[int](3)

	for i := 1; i <= 5; i++ {
		b.Push(i)
	}

	if b.Len() != 3 {
		t.Fatalf("expected len 3 after overfill, got %d", b.Len())
	}
	want := []int{3, 4, 5}
	for i, w := range want {
		if got := b.At(i); got != w {
			t.Errorf("At(%d) = %d, want %d", i, got, w)
		}
	}
}

func TestBufferLatest(t *testing.T) {
	b := New[string](2)

	if _, ok := b.Latest(); ok {
		t.Error("expected Latest to report empty")
	}

	b.Push("a")
	b.Push("b")
	b.Push("c")

	v, ok := b.Latest()
	if !ok || v != "c" {
		t.Errorf("Latest = %q, %v; want \"c\", true", v, ok)
	}
}

func TestBufferSnapshotAndReset(t *testing.T) {
	b := New[int](4)
	b.Push(10)
	b.Push(20)

	snap := b.Snapshot()
	if len(snap) != 2 || snap[0] != 10 || snap[1] != 20 {
		t.Errorf("unexpected snapshot %v", snap)
	}

	b.Reset()
	if b.Len() != 0 {
		t.Errorf("expected empty buffer after reset, got len %d", b.Len())
	}
	if b.Cap() != 4 {
		t.Errorf("expected capacity preserved, got %d", b.Cap())
	}
}

func TestBufferMinimumCapacity(t *testing.T) {
	b := New[int](0)
	b.Push(1)
	b.Push(2)

	if b.Len() != 1 {
		t.Fatalf("expected len 1, got %d", b.Len())
	}
	if v, _ := b.Latest(); v != 2 {
		t.Errorf("expected latest 2, got %d", v)
	}
}
