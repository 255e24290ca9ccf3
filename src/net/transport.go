package net

import "errors"

var (
	// ErrTransportShutdown is returned when operations on a transport are
	// invoked after it's been terminated.
	ErrTransportShutdown = errors.New("transport shutdown")

	// ErrQueueFull is returned when the outbound queue of a target, or the
	// inbound queue of an in-memory peer, cannot take another message.
	ErrQueueFull = errors.New("outbound queue full")

	// ErrUnknownTarget is returned when there is no route to the target.
	ErrUnknownTarget = errors.New("unknown target")
)

// Transport provides an interface for network transports to allow a node to
// communicate with its neighbors.
type Transport interface {

	// Starts the transport listening
	Listen()

	// Consumer returns a channel that can be used to consume and respond to
	// inbound requests.
	Consumer() <-chan RPC

	// Done is closed when the transport is closed. It is the signal for the
	// node to stop.
	Done() <-chan struct{}

	// LocalAddr is used to return our local address
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other peers
	// can reach us
	AdvertiseAddr() string

	// Broadcast enqueues a BroadcastRequest for the target and returns without
	// waiting for delivery. The error only reports failure to enqueue.
	Broadcast(target string, header Header, req *BroadcastRequest) error

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}

// SendFailure describes a request that was enqueued by Broadcast but could not
// be delivered.
type SendFailure struct {
	Target string
	Header Header
	Origin NodeID
	Err    error
}

// FailureReporter is implemented by transports that deliver in the
// background. The handler is called from a delivery routine once per lost
// request, so it must be safe for concurrent use.
type FailureReporter interface {
	OnSendFailure(h func(SendFailure))
}
