package refcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetCachesValue(t *testing.T) {
	c := New(time.Minute)
	calls := 0
	load := func(context.Context) (interface{}, error) {
		calls++
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.Get(context.Background(), "k", load)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != "value" {
			t.Fatalf("expected value, got %v", v)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 loader call, got %d", calls)
	}
}

func TestGetReloadsAfterExpiry(t *testing.T) {
	c := New(time.Minute)
	current := time.Now()
	c.now = func() time.Time { return current }

	calls := 0
	load := func(context.Context) (interface{}, error) {
		calls++
		return calls, nil
	}

	if v, _ := c.Get(context.Background(), "k", load); v != 1 {
		t.Fatalf("expected first load, got %v", v)
	}
	current = current.Add(2 * time.Minute)
	if v, _ := c.Get(context.Background(), "k", load); v != 2 {
		t.Fatalf("expected reload after expiry, got %v", v)
	}
}

func TestGetDeduplicatesConcurrentLoads(t *testing.T) {
	c := New(time.Minute)
	var calls int32
	gate := make(chan struct{})
	load := func(context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-gate
		return "value", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(context.Background(), "k", load); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	// Let the goroutines pile up behind the single in-flight load.
	time.Sleep(10 * time.Millisecond)
	close(gate)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected 1 loader call for concurrent gets, got %d", n)
	}
}

func TestLoaderErrorsNotCached(t *testing.T) {
	c := New(time.Minute)
	calls := 0
	load := func(context.Context) (interface{}, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("down")
		}
		return "value", nil
	}

	if _, err := c.Get(context.Background(), "k", load); err == nil {
		t.Fatal("expected error from first load")
	}
	v, err := c.Get(context.Background(), "k", load)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "value" {
		t.Errorf("expected retry to succeed, got %v", v)
	}
}

func TestInvalidate(t *testing.T) {
	c := New(time.Minute)
	calls := 0
	load := func(context.Context) (interface{}, error) {
		calls++
		return calls, nil
	}

	c.Get(context.Background(), "k", load)
	c.Invalidate("k")
	if v, _ := c.Get(context.Background(), "k", load); v != 2 {
		t.Errorf("expected reload after invalidate, got %v", v)
	}

	c.Purge()
	if v, _ := c.Get(context.Background(), "k", load); v != 3 {
		t.Errorf("expected reload after purge, got %v", v)
	}
}
