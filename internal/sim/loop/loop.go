package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var ErrStopped = errors.New("loop stopped")

// Loop runs every gameplay mutation on one goroutine. Work submitted from
// other goroutines runs as soon as it arrives; work deferred from inside the
// loop runs on the next tick.
type Loop struct {
	interval time.Duration

	inbox chan func()
	stop  chan struct{}
	once  sync.Once

	tick     atomic.Uint64
	deferred []func()
}

func New(tickRateHz int) *Loop {
	if tickRateHz <= 0 {
		tickRateHz = 20
	}
	return &Loop{
		interval: time.Second / time.Duration(tickRateHz),
		inbox:    make(chan func(), 1024),
		stop:     make(chan struct{}),
	}
}

func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return nil
		case fn := <-l.inbox:
			fn()
		case <-ticker.C:
			l.StepOnce()
		}
	}
}

func (l *Loop) Stop() { l.once.Do(func() { close(l.stop) }) }

// StepOnce advances one tick and runs the callbacks deferred before it.
// Callbacks deferred while running wait for the following tick.
func (l *Loop) StepOnce() uint64 {
	due := l.deferred
	l.deferred = nil
	for _, fn := range due {
		fn()
	}
	return l.tick.Add(1)
}

// Defer schedules fn for the next tick. Only call it from the loop goroutine.
func (l *Loop) Defer(fn func()) { l.deferred = append(l.deferred, fn) }

func (l *Loop) Pending() int { return len(l.deferred) }

func (l *Loop) Tick() uint64 { return l.tick.Load() }

// Submit queues fn to run on the loop goroutine.
func (l *Loop) Submit(ctx context.Context, fn func()) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stop:
		return ErrStopped
	case l.inbox <- fn:
		return nil
	}
}

// Call runs fn on the loop goroutine and waits for it to return.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := l.Submit(ctx, func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stop:
		return ErrStopped
	case <-done:
		return nil
	}
}
