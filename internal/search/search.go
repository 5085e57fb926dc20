// Package search debounces picker queries so that only the latest query's
// answer is ever used.
package search

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStale is returned to callers whose query was superseded by a newer one.
var ErrStale = errors.New("search superseded by a newer query")

// Func runs one query.
type Func[T any] func(ctx context.Context, q string) (T, error)

// Debouncer waits for input to settle, cancels the query it replaces and
// drops answers that arrive after a newer query was issued. Freshness is
// decided by issue order (a token), never by arrival order.
type Debouncer[T any] struct {
	delay time.Duration
	fn    Func[T]

	mu     sync.Mutex
	token  uint64
	cancel context.CancelFunc
}

func NewDebouncer[T any](delay time.Duration, fn Func[T]) *Debouncer[T] {
	return &Debouncer[T]{delay: delay, fn: fn}
}

// Do issues q. It blocks for the debounce delay and the query itself, and
// returns ErrStale if another Do started in the meantime.
func (d *Debouncer[T]) Do(ctx context.Context, q string) (T, error) {
	var zero T

	d.mu.Lock()
	d.token++
	tok := d.token
	if d.cancel != nil {
		d.cancel()
	}
	qctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.mu.Unlock()
	defer cancel()

	if d.delay > 0 {
		timer := time.NewTimer(d.delay)
		select {
		case <-timer.C:
		case <-qctx.Done():
			timer.Stop()
			if !d.latest(tok) {
				return zero, ErrStale
			}
			return zero, qctx.Err()
		}
	}
	if !d.latest(tok) {
		return zero, ErrStale
	}

	res, err := d.fn(qctx, q)
	if !d.latest(tok) {
		return zero, ErrStale
	}
	return res, err
}

// Cancel abandons any query in flight.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.token++
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Debouncer[T]) latest(tok uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.token == tok
}
