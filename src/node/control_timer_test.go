package node

import (
	"testing"
	"time"
)

func TestControlTimer(t *testing.T) {
	timer := NewRandomControlTimer()
	go timer.Run(0)
	defer timer.Shutdown()

	select {
	case <-timer.tickCh:
		t.Fatal("a zero duration should never fire")
	case <-time.After(50 * time.Millisecond):
	}

	timer.Reset(10 * time.Millisecond)
	select {
	case <-timer.tickCh:
	case <-time.After(time.Second):
		t.Fatal("timer should have fired")
	}

	// a zero reset disarms the timer
	timer.Reset(10 * time.Millisecond)
	timer.Reset(0)
	select {
	case <-timer.tickCh:
		t.Fatal("a disarmed timer should not fire")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestControlTimerResetAfterShutdown(t *testing.T) {
	timer := NewRandomControlTimer()
	go timer.Run(time.Millisecond)
	timer.Shutdown()

	done := make(chan struct{})
	go func() {
		timer.Reset(time.Millisecond)
		timer.Reset(time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Reset should not block after Shutdown")
	}
}
