package search

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_SingleQuery(t *testing.T) {
	d := NewDebouncer(10*time.Millisecond, func(_ context.Context, q string) (string, error) {
		return "hit:" + q, nil
	})
	got, err := d.Do(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "hit:acme", got)
}

func TestDebouncer_NewerQueryWinsRegardlessOfArrival(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	d := NewDebouncer(0, func(ctx context.Context, q string) (string, error) {
		calls.Add(1)
		if q == "slow" {
			// Ignores cancellation and answers after the newer query.
			<-release
		}
		return q, nil
	})

	var wg sync.WaitGroup
	var slowErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, slowErr = d.Do(context.Background(), "slow")
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	fast, err := d.Do(context.Background(), "fast")
	require.NoError(t, err)
	assert.Equal(t, "fast", fast)

	close(release)
	wg.Wait()
	assert.ErrorIs(t, slowErr, ErrStale)
}

func TestDebouncer_SupersededDuringDelayNeverRuns(t *testing.T) {
	var ran []string
	var mu sync.Mutex
	d := NewDebouncer(50*time.Millisecond, func(_ context.Context, q string) (string, error) {
		mu.Lock()
		ran = append(ran, q)
		mu.Unlock()
		return q, nil
	})

	errs := make(chan error, 2)
	go func() {
		_, err := d.Do(context.Background(), "a")
		errs <- err
	}()
	time.Sleep(10 * time.Millisecond)
	go func() {
		_, err := d.Do(context.Background(), "ab")
		errs <- err
	}()

	var stale, ok int
	for i := 0; i < 2; i++ {
		if err := <-errs; err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrStale)
			stale++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, stale)
	assert.Equal(t, []string{"ab"}, ran)
}

func TestDebouncer_PreviousContextIsCancelled(t *testing.T) {
	cancelled := make(chan struct{})
	started := make(chan struct{})
	d := NewDebouncer(0, func(ctx context.Context, q string) (string, error) {
		if q == "first" {
			close(started)
			<-ctx.Done()
			close(cancelled)
			return "", ctx.Err()
		}
		return q, nil
	})

	go func() { _, _ = d.Do(context.Background(), "first") }()
	<-started
	_, err := d.Do(context.Background(), "second")
	require.NoError(t, err)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("first query was not cancelled")
	}
}

func TestDebouncer_CallerCancellation(t *testing.T) {
	d := NewDebouncer(time.Second, func(_ context.Context, q string) (string, error) { return q, nil })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Do(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
