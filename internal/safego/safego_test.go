package safego

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestGo_RunsFunction(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)

	Go(func() {
		defer wg.Done()
	})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("goroutine did not complete within timeout")
	}
}

func TestGo_RecoversPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)

	// This should not crash the test process; the panic must be recovered.
	Go(func() {
		defer wg.Done()
		panic("intentional panic in test")
	})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("goroutine did not complete within timeout after panic")
	}
}

type ctxKey struct{}

func TestGoWithTimeout_DetachedFromParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "req-1"))
	cancel()

	result := make(chan error, 1)
	values := make(chan any, 1)
	GoWithTimeout(parent, time.Second, func(ctx context.Context) {
		values <- ctx.Value(ctxKey{})
		result <- ctx.Err()
	})

	select {
	case err := <-result:
		if err != nil {
			t.Errorf("ctx.Err() = %v, want nil after parent cancel", err)
		}
		if v := <-values; v != "req-1" {
			t.Errorf("value = %v, want req-1", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("goroutine did not run")
	}
}

func TestGoWithTimeout_Deadline(t *testing.T) {
	done := make(chan error, 1)
	GoWithTimeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) {
		<-ctx.Done()
		done <- ctx.Err()
	})

	select {
	case err := <-done:
		if err != context.DeadlineExceeded {
			t.Errorf("err = %v, want DeadlineExceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout was not applied")
	}
}
