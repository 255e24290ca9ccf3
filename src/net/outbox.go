package net

import (
	"fmt"
	"sync"
)

type outbound struct {
	header Header
	req    *BroadcastRequest
}

// outbox keeps one bounded queue per target, each drained by its own
// goroutine, so that enqueueing never waits on the network.
type outbox struct {
	sync.Mutex
	queues    map[string]chan outbound
	size      int
	deliver   func(target string, msg outbound)
	onFailure func(SendFailure)
	closed    bool
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

func newOutbox(size int, deliver func(target string, msg outbound)) *outbox {
	if size < 1 {
		size = 1
	}
	return &outbox{
		queues:  make(map[string]chan outbound),
		size:    size,
		deliver: deliver,
		closeCh: make(chan struct{}),
	}
}

func (o *outbox) enqueue(target string, msg outbound) error {
	o.Lock()
	if o.closed {
		o.Unlock()
		return ErrTransportShutdown
	}
	q, ok := o.queues[target]
	if !ok {
		q = make(chan outbound, o.size)
		o.queues[target] = q
		o.wg.Add(1)
		go o.run(target, q)
	}
	o.Unlock()

	select {
	case q <- msg:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, target)
	}
}

func (o *outbox) setOnFailure(h func(SendFailure)) {
	o.Lock()
	defer o.Unlock()
	o.onFailure = h
}

// fail reports a message that deliver could not send.
func (o *outbox) fail(target string, msg outbound, err error) {
	o.Lock()
	h := o.onFailure
	o.Unlock()

	if h != nil {
		h(SendFailure{
			Target: target,
			Header: msg.header,
			Origin: msg.req.Origin,
			Err:    err,
		})
	}
}

func (o *outbox) run(target string, q chan outbound) {
	defer o.wg.Done()
	for {
		select {
		case msg := <-q:
			o.deliver(target, msg)
		case <-o.closeCh:
			return
		}
	}
}

// close stops all delivery routines and waits for them. Messages still queued
// are dropped.
func (o *outbox) close() {
	o.Lock()
	if o.closed {
		o.Unlock()
		return
	}
	o.closed = true
	close(o.closeCh)
	o.Unlock()

	o.wg.Wait()
}
