package containers

import (
	"errors"
	"testing"
)

func TestRingQueue_EnqueueDequeue(t *testing.T) {
	rq := NewRingQueue[int](3)
	for i := 1; i <= 3; i++ {
		if err := rq.Enqueue(i); err != nil {
			t.Fatalf("Enqueue(%d) error = %v", i, err)
		}
	}
	if err := rq.Enqueue(4); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Enqueue on full queue error = %v, want ErrQueueFull", err)
	}

	for want := 1; want <= 3; want++ {
		got, err := rq.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue() error = %v", err)
		}
		if got != want {
			t.Errorf("Dequeue() = %d, want %d", got, want)
		}
	}
	if _, err := rq.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("Dequeue on empty queue error = %v, want ErrQueueEmpty", err)
	}
}

func TestRingQueue_PushOverwritesOldest(t *testing.T) {
	rq := NewRingQueue[string](2)
	rq.Push("a")
	rq.Push("b")
	rq.Push("c")

	var got []string
	rq.Each(func(s string) { got = append(got, s) })
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("Each() = %v, want [b c]", got)
	}

	front, err := rq.Peek()
	if err != nil || front != "b" {
		t.Errorf("Peek() = %q, %v; want \"b\", nil", front, err)
	}
}

func TestRingQueue_ZeroSizePushIsNoop(t *testing.T) {
	rq := NewRingQueue[int](0)
	rq.Push(1)
	if rq.Len() != 0 {
		t.Errorf("Len() = %d, want 0", rq.Len())
	}
}
