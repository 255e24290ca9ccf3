package common

import "fmt"

// GossipErrType enumerates the unrecoverable errors of the propagation
// engine. All of them point at a configuration or programming bug and are
// reported to the operator rather than retried.
type GossipErrType uint32

const (
	// CapacityExceeded is returned when an insertion would overflow a
	// fixed-capacity buffer or set (ModelSize or NumNodes too small).
	CapacityExceeded GossipErrType = iota
	// NeighborNotFound is returned when a peer id is not part of the static
	// topology.
	NeighborNotFound
	// MissingOrigin is returned when forwarding is attempted for an origin
	// whose model was never received.
	MissingOrigin
)

// String ...
func (t GossipErrType) String() string {
	switch t {
	case CapacityExceeded:
		return "Capacity Exceeded"
	case NeighborNotFound:
		return "Neighbor Not Found"
	case MissingOrigin:
		return "Missing Origin"
	default:
		return "Unknown"
	}
}

// GossipErr is the error type returned by the gossip data structures. It
// records the kind of object involved, the error code, and the offending key.
type GossipErr struct {
	dataType string
	errType  GossipErrType
	key      string
}

// NewGossipErr ...
func NewGossipErr(dataType string, errType GossipErrType, key string) GossipErr {
	return GossipErr{
		dataType: dataType,
		errType:  errType,
		key:      key,
	}
}

// Error ...
func (e GossipErr) Error() string {
	return fmt.Sprintf("%s, %s, %s", e.dataType, e.key, e.errType)
}

// Type returns the error code.
func (e GossipErr) Type() GossipErrType {
	return e.errType
}

// IsGossip checks that an error is of type GossipErr and that its code matches
// the provided GossipErr code. Wrapped errors are unwrapped first.
func IsGossip(err error, t GossipErrType) bool {
	for err != nil {
		if gErr, ok := err.(GossipErr); ok {
			return gErr.errType == t
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
