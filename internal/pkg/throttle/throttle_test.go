package throttle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestFIFOOrderAndSpacing(t *testing.T) {
	const interval = 30 * time.Millisecond
	th := New(interval, 8)
	defer th.Close()

	var mu sync.Mutex
	var order []int
	var starts []time.Time

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		i := i
		wg.Add(1)
		// Submit sequentially so queue order is deterministic.
		if err := func() error {
			go func() {
				defer wg.Done()
				_ = th.Do(context.Background(), func(ctx context.Context) error {
					mu.Lock()
					order = append(order, i)
					starts = append(starts, time.Now())
					mu.Unlock()
					return nil
				})
			}()
			// Give each submission time to land in the queue before the next.
			time.Sleep(5 * time.Millisecond)
			return nil
		}(); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()

	for i, got := range order {
		if got != i {
			t.Fatalf("expected FIFO order, got %v", order)
		}
	}
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < interval {
			t.Fatalf("calls %d and %d only %v apart, want >= %v", i-1, i, gap, interval)
		}
	}
}

func TestFailureStillConsumesSlotAndDelay(t *testing.T) {
	const interval = 30 * time.Millisecond
	th := New(interval, 8)
	defer th.Close()

	boom := errors.New("boom")
	var firstDone, secondStart time.Time

	errCh := make(chan error, 1)
	go func() {
		errCh <- th.Do(context.Background(), func(ctx context.Context) error {
			firstDone = time.Now()
			return boom
		})
	}()
	time.Sleep(5 * time.Millisecond)

	if err := th.Do(context.Background(), func(ctx context.Context) error {
		secondStart = time.Now()
		return nil
	}); err != nil {
		t.Fatalf("second call failed: %v", err)
	}

	if err := <-errCh; !errors.Is(err, boom) {
		t.Fatalf("expected submitted error back, got %v", err)
	}
	if gap := secondStart.Sub(firstDone); gap < interval {
		t.Fatalf("second call started %v after first finished, want >= %v", gap, interval)
	}
}

func TestDoAfterClose(t *testing.T) {
	th := New(time.Millisecond, 1)
	th.Close()

	err := th.Do(context.Background(), func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	th := New(time.Millisecond, 1)
	defer th.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := th.Do(ctx, func(ctx context.Context) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestConcurrentSubmitters(t *testing.T) {
	th := New(time.Millisecond, 64)
	defer th.Close()

	var mu sync.Mutex
	count := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = th.Do(context.Background(), func(ctx context.Context) error {
				mu.Lock()
				count++
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if count != 20 {
		t.Fatalf("expected all 20 submissions to run, got %d", count)
	}
}
