package interactive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	l := New(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l, cancel
}

func TestLoop_PreservesPostOrder(t *testing.T) {
	l, _ := startLoop(t)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		if err := l.Post(func() { got = append(got, i) }); err != nil {
			t.Fatalf("Post() error = %v", err)
		}
	}
	if err := l.Call(context.Background(), func() {}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want FIFO order", i, v)
		}
	}
	if len(got) != 100 {
		t.Errorf("ran %d functions, want 100", len(got))
	}
}

func TestLoop_RunsOnSingleGoroutine(t *testing.T) {
	l, _ := startLoop(t)

	// Unsynchronized counter is safe only if every fn runs on the loop.
	counter := 0
	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = l.Post(func() { counter++ })
			}
		}()
	}
	wg.Wait()

	var final int
	if err := l.Call(context.Background(), func() { final = counter }); err != nil {
		t.Fatal(err)
	}
	if final != 500 {
		t.Errorf("counter = %d, want 500", final)
	}
}

func TestLoop_RecoversFromPanic(t *testing.T) {
	l, _ := startLoop(t)

	_ = l.Post(func() { panic("boom") })

	ran := false
	if err := l.Call(context.Background(), func() { ran = true }); err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Error("loop did not survive a panicking function")
	}
}

func TestLoop_PostAfterStop(t *testing.T) {
	l := New(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	cancel()

	select {
	case <-l.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}

	if err := l.Post(func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Post() after stop = %v, want ErrStopped", err)
	}
	if err := l.Call(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Call() after stop = %v, want ErrStopped", err)
	}
}
