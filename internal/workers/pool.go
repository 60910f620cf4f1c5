package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("workers: pool closed")

// Pool runs blocking functions on a bounded set of goroutines so the caller's
// coordination flow never blocks on filesystem I/O itself.
type Pool struct {
	sem chan struct{}

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool creates a pool that runs at most size functions at once.
// A size below 1 is treated as 1.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Size returns the concurrency limit.
func (p *Pool) Size() int {
	return cap(p.sem)
}

// Result is the outcome of a submitted function.
type Result[T any] struct {
	Value T
	Err   error
}

// Submit schedules fn on the pool and returns a channel that receives its
// result exactly once. If ctx ends before a slot frees up, the channel
// receives ctx's error and fn never runs. A panic in fn is returned as an
// error.
func Submit[T any](ctx context.Context, p *Pool, fn func() (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		out <- Result[T]{Err: ErrPoolClosed}
		return out
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	go func() {
		defer p.wg.Done()

		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			out <- Result[T]{Err: ctx.Err()}
			return
		}
		defer func() { <-p.sem }()

		out <- call(fn)
	}()

	return out
}

// Run submits fn and waits for its result.
func Run[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	res := <-Submit(ctx, p, fn)
	return res.Value, res.Err
}

func call[T any](fn func() (T, error)) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			res = Result[T]{Err: fmt.Errorf("workers: task panicked: %v", r)}
		}
	}()
	v, err := fn()
	return Result[T]{Value: v, Err: err}
}

// Close stops accepting work and waits for submitted functions to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
