package uiloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"pkt.systems/pslog"
)

// DefaultFrameInterval approximates one display refresh.
const DefaultFrameInterval = 16 * time.Millisecond

// ErrStopped is returned by Call once the loop has exited.
var ErrStopped = errors.New("ui loop stopped")

// Loop runs tasks one at a time on the goroutine that called Run.
// Post, AfterFunc and NextFrame are safe to call from any goroutine.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped chan struct{}
	frame   time.Duration
	log     pslog.Logger
	running atomic.Bool
	once    sync.Once
}

// New constructs a Loop.
func New(logger pslog.Logger) *Loop {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Loop{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		frame:   DefaultFrameInterval,
		log:     logger,
	}
}

// Run processes tasks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("ui loop already running")
	}
	defer l.once.Do(func() { close(l.stopped) })
	l.log.Debug("uiloop run start")
	for {
		for {
			fn := l.pop()
			if fn == nil {
				break
			}
			l.runTask(fn)
		}
		select {
		case <-ctx.Done():
			l.log.Debug("uiloop run stop", "pending", l.pending())
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Post queues fn for the loop goroutine.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	select {
	case <-l.stopped:
		l.log.Trace("uiloop post dropped")
		return
	default:
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// AfterFunc posts fn to the loop after d. The returned func cancels it.
func (l *Loop) AfterFunc(d time.Duration, fn func()) func() {
	var cancelled atomic.Bool
	timer := time.AfterFunc(d, func() {
		l.Post(func() {
			if !cancelled.Load() {
				fn()
			}
		})
	})
	return func() {
		cancelled.Store(true)
		timer.Stop()
	}
}

// NextFrame posts fn after one frame interval.
func (l *Loop) NextFrame(fn func()) func() {
	return l.AfterFunc(l.frame, fn)
}

// Call runs fn on the loop and waits for it to return.
func (l *Loop) Call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	l.Post(func() { done <- fn() })
	select {
	case err := <-done:
		return err
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("uiloop task panic", "panic", r)
		}
	}()
	fn()
}

func (l *Loop) pop() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}

func (l *Loop) pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}
