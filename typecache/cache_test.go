package typecache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestCache_GetOrCreate(t *testing.T) {
	c := New[int](4)
	ctx := context.Background()

	v, hit, err := c.GetOrCreate(ctx, "a", func() (int, error) { return 1, nil })
	if err != nil || hit || v != 1 {
		t.Fatalf("first GetOrCreate = %v, %v, %v; want 1, false, nil", v, hit, err)
	}
	v, hit, err = c.GetOrCreate(ctx, "a", func() (int, error) {
		t.Error("create called for cached key")
		return 2, nil
	})
	if err != nil || !hit || v != 1 {
		t.Fatalf("second GetOrCreate = %v, %v, %v; want 1, true, nil", v, hit, err)
	}
	if got := c.Stats(); got.Hits != 1 || got.Misses != 1 {
		t.Errorf("Stats() = %+v", got)
	}
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	c := New[string](4)
	ctx := context.Background()
	boom := errors.New("boom")

	if _, _, err := c.GetOrCreate(ctx, "k", func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("failed creation was cached")
	}
	v, _, err := c.GetOrCreate(ctx, "k", func() (string, error) { return "ok", nil })
	if err != nil || v != "ok" {
		t.Errorf("retry = %q, %v", v, err)
	}
}

func TestCache_Eviction(t *testing.T) {
	c := New[int](2)
	ctx := context.Background()
	for i, k := range []string{"a", "b"} {
		c.GetOrCreate(ctx, k, func() (int, error) { return i, nil })
	}
	c.Get("a") // a is now most recent
	c.GetOrCreate(ctx, "c", func() (int, error) { return 3, nil })

	if diff := cmp.Diff([]string{"c", "a"}, c.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}

func TestCache_ZeroSize(t *testing.T) {
	c := New[int](0)
	calls := 0
	for range 3 {
		c.GetOrCreate(context.Background(), "k", func() (int, error) {
			calls++
			return calls, nil
		})
	}
	if calls != 3 {
		t.Errorf("create called %d times, want 3", calls)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestCache_ConcurrentCreateOnce(t *testing.T) {
	c := New[int](4)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := c.GetOrCreate(context.Background(), "k", func() (int, error) {
				calls.Add(1)
				<-release
				return 42, nil
			})
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
			}
			results[i] = v
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("create called %d times, want 1", got)
	}
	for i, v := range results {
		if v != 42 {
			t.Errorf("results[%d] = %d, want 42", i, v)
		}
	}
}

func TestCache_ContextCanceled(t *testing.T) {
	c := New[int](4)
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)

	done := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCreate(ctx, "slow", func() (int, error) {
			<-release
			return 1, nil
		})
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("GetOrCreate did not return after cancel")
	}
}

func TestCache_Purge(t *testing.T) {
	c := New[int](4)
	c.GetOrCreate(context.Background(), "a", func() (int, error) { return 1, nil })
	c.Purge()
	if _, ok := c.Get("a"); ok {
		t.Error("value survived Purge")
	}
}
