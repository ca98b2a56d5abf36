package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestFIFO(t *testing.T) {
	q := New[int](0)
	for i := 1; i <= 5; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) rejected", i)
		}
	}
	for want := 1; want <= 5; want++ {
		got, err := q.Pop(context.Background())
		if err != nil {
			t.Fatalf("Pop: %v", err)
		}
		if got != want {
			t.Fatalf("Pop = %d, want %d", got, want)
		}
	}
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := New[string](0)
	done := make(chan string)
	go func() {
		v, _ := q.Pop(context.Background())
		done <- v
	}()

	select {
	case <-done:
		t.Fatal("Pop returned on empty queue")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push("x")
	select {
	case v := <-done:
		if v != "x" {
			t.Errorf("Pop = %q", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake after Push")
	}
}

func TestPopContextCancel(t *testing.T) {
	q := New[int](0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Pop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestCloseDeliversRemainingThenErrClosed(t *testing.T) {
	q := New[int](0)
	q.Push(1)
	q.Push(2)
	q.Close()

	if q.Push(3) {
		t.Error("Push after Close should be rejected")
	}
	for want := 1; want <= 2; want++ {
		got, err := q.Pop(context.Background())
		if err != nil || got != want {
			t.Fatalf("Pop = %d, %v; want %d, nil", got, err, want)
		}
	}
	if _, err := q.Pop(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}

func TestCloseWakesBlockedConsumer(t *testing.T) {
	q := New[int](0)
	errCh := make(chan error)
	go func() {
		_, err := q.Pop(context.Background())
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("err = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("consumer not woken by Close")
	}
}

func TestCapacity(t *testing.T) {
	q := New[int](2)
	if !q.Push(1) || !q.Push(2) {
		t.Fatal("pushes within capacity rejected")
	}
	if q.Push(3) {
		t.Error("push beyond capacity accepted")
	}
	if q.Len() != 2 {
		t.Errorf("Len = %d, want 2", q.Len())
	}
}

func TestDrain(t *testing.T) {
	q := New[int](0)
	q.Push(1)
	q.Push(2)
	got := q.Drain()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("Drain = %v", got)
	}
	if q.Len() != 0 {
		t.Errorf("Len after drain = %d", q.Len())
	}
}

func TestConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	q := New[[2]int](0)
	const producers, perProducer = 4, 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push([2]int{p, i})
			}
		}(p)
	}
	wg.Wait()
	q.Close()

	next := make([]int, producers)
	for {
		v, err := q.Pop(context.Background())
		if errors.Is(err, ErrClosed) {
			break
		}
		if v[1] != next[v[0]] {
			t.Fatalf("producer %d: got %d, want %d", v[0], v[1], next[v[0]])
		}
		next[v[0]]++
	}
	for p, n := range next {
		if n != perProducer {
			t.Errorf("producer %d delivered %d items", p, n)
		}
	}
}
