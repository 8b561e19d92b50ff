package host

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// ErrDispatcherStopped is returned by Call once Run has returned.
var ErrDispatcherStopped = errors.New("dispatcher stopped")

// Dispatcher serializes work onto the goroutine running Run.
//
// Call must not be used from inside a job; the job would wait on itself.
type Dispatcher struct {
	jobs     chan func()
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewDispatcher creates a Dispatcher whose queue holds up to queue pending
// jobs.
func NewDispatcher(queue int) *Dispatcher {
	if queue < 0 {
		queue = 0
	}
	return &Dispatcher{
		jobs:    make(chan func(), queue),
		stopped: make(chan struct{}),
	}
}

// Run executes jobs on the calling goroutine, locked to its OS thread,
// until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer d.stopOnce.Do(func() { close(d.stopped) })

	for {
		select {
		case job := <-d.jobs:
			job()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Call runs fn on the dispatcher goroutine and waits for its result. Each
// call gets its own reply channel, buffered so a caller that gave up never
// blocks the dispatcher.
func (d *Dispatcher) Call(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	job := func() {
		defer func() {
			if r := recover(); r != nil {
				reply <- fmt.Errorf("dispatched call panicked: %v", r)
			}
		}()
		reply <- fn()
	}

	select {
	case d.jobs <- job:
	case <-d.stopped:
		return ErrDispatcherStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-d.stopped:
		// The job may have finished just before Run returned.
		select {
		case err := <-reply:
			return err
		default:
			return ErrDispatcherStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
