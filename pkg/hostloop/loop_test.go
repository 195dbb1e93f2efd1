package hostloop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

const loopTestPrefix = "hostloop:loop_test"

func TestStep_RunsHooksInOrder(t *testing.T) {
	l := New(0)
	if l.Interval() != DefaultInterval {
		t.Errorf("%s - Interval = %s, want %s", loopTestPrefix, l.Interval(), DefaultInterval)
	}

	var order []string
	l.OnTick(func() { order = append(order, "a") })
	l.OnTick(func() { order = append(order, "b") })
	l.Step()

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("%s - order = %v, want [a b]", loopTestPrefix, order)
	}
	if l.Ticks() != 1 {
		t.Errorf("%s - Ticks = %d, want 1", loopTestPrefix, l.Ticks())
	}
}

func TestOnTick_Unregister(t *testing.T) {
	l := New(time.Millisecond)
	calls := 0
	unregister := l.OnTick(func() { calls++ })
	l.Step()
	unregister()
	unregister()
	l.Step()
	if calls != 1 {
		t.Errorf("%s - calls = %d, want 1", loopTestPrefix, calls)
	}
}

func TestStep_PanickingHookDoesNotStopOthers(t *testing.T) {
	l := New(time.Millisecond)
	ran := false
	l.OnTick(func() { panic("bad hook") })
	l.OnTick(func() { ran = true })
	l.Step()
	if !ran {
		t.Errorf("%s - hook after a panicking hook did not run", loopTestPrefix)
	}
}

func TestStep_HookMayUnregisterItself(t *testing.T) {
	l := New(time.Millisecond)
	calls := 0
	var unregister func()
	unregister = l.OnTick(func() {
		calls++
		unregister()
	})
	l.Step()
	l.Step()
	if calls != 1 {
		t.Errorf("%s - calls = %d, want 1", loopTestPrefix, calls)
	}
}

func TestRun_TicksAndQuits(t *testing.T) {
	l := New(time.Millisecond)
	var ticks atomic.Int32
	quit := make(chan struct{}, 1)
	l.OnTick(func() { ticks.Add(1) })
	l.OnQuit(func() { quit <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for ticks.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("%s - loop did not tick", loopTestPrefix)
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("%s - Run returned %v", loopTestPrefix, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("%s - Run did not return", loopTestPrefix)
	}
	select {
	case <-quit:
	default:
		t.Errorf("%s - quit hook did not run", loopTestPrefix)
	}
}
