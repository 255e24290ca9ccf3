package node

import (
	"math/rand"
	"time"
)

type timerFactory func(time.Duration) <-chan time.Time

// ControlTimer is the heartbeat of a node. The node resets it after
// originating its model and receives a tick when it is time to originate
// again.
type ControlTimer struct {
	timerFactory timerFactory
	tickCh       chan struct{}      // sends a signal to listening process
	resetCh      chan time.Duration // receives instruction to reset the heartbeatTimer
	shutdownCh   chan struct{}      // receives instruction to exit Run loop
}

// NewControlTimer ...
func NewControlTimer(timerFactory timerFactory) *ControlTimer {
	return &ControlTimer{
		timerFactory: timerFactory,
		tickCh:       make(chan struct{}),
		resetCh:      make(chan time.Duration),
		shutdownCh:   make(chan struct{}),
	}
}

// NewRandomControlTimer returns a timer that fires between min and 2*min
// after each reset, so that nodes started together drift apart. A zero
// duration never fires.
func NewRandomControlTimer() *ControlTimer {

	randomTimeout := func(min time.Duration) <-chan time.Time {
		if min == 0 {
			return nil
		}
		extra := (time.Duration(rand.Int63()) % min)
		return time.After(min + extra)
	}
	return NewControlTimer(randomTimeout)
}

// Run ...
func (c *ControlTimer) Run(init time.Duration) {

	timer := c.timerFactory(init)
	for {
		select {
		case <-timer:
			timer = nil
			// a reset received while the tick is pending supersedes it
			select {
			case c.tickCh <- struct{}{}:
			case t := <-c.resetCh:
				timer = c.timerFactory(t)
			case <-c.shutdownCh:
				return
			}
		case t := <-c.resetCh:
			timer = c.timerFactory(t)
		case <-c.shutdownCh:
			return
		}
	}
}

// Reset arms the timer to fire after t. It returns without effect once the
// timer is shut down.
func (c *ControlTimer) Reset(t time.Duration) {
	select {
	case c.resetCh <- t:
	case <-c.shutdownCh:
	}
}

// Shutdown ...
func (c *ControlTimer) Shutdown() {
	close(c.shutdownCh)
}
