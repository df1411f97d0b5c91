package uiloop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopRunsPostedTasksInOrder(t *testing.T) {
	loop := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		loop.Post(func() { order = append(order, i) })
	}
	callCtx, callCancel := context.WithTimeout(ctx, 2*time.Second)
	defer callCancel()
	var got []int
	if err := loop.Call(callCtx, func() error {
		got = append(got, order...)
		return nil
	}); err != nil {
		t.Fatalf("call: %v", err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("unexpected order %v", got)
		}
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 tasks, got %v", got)
	}
}

func TestLoopAfterFuncCancel(t *testing.T) {
	loop := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	var fired atomic.Int32
	stop := loop.AfterFunc(20*time.Millisecond, func() { fired.Add(1) })
	stop()
	done := make(chan struct{})
	loop.AfterFunc(40*time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for timer")
	}
	if fired.Load() != 0 {
		t.Fatalf("cancelled timer fired")
	}
}

func TestLoopCallAfterStop(t *testing.T) {
	loop := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()
	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not stop")
	}
	if err := loop.Call(context.Background(), func() error { return nil }); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}
