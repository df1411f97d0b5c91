package core

import "time"

// Scheduler is the single UI thread. Every core callback runs through it,
// and core types must only be touched from it.
type Scheduler interface {
	// Post queues fn behind the current task.
	Post(fn func())
	// AfterFunc runs fn after d. The returned func cancels it.
	AfterFunc(d time.Duration, fn func()) func()
	// NextFrame runs fn once the next frame has been laid out.
	NextFrame(fn func()) func()
}
