package state

import "sync/atomic"

// State captures the state of a polyferno node: Listening or Shutdown
type State uint32

const (
	// Listening is the state in which a node receives BroadcastRequests,
	// forwards them to its neighbors, and originates its own model when asked
	// to.
	Listening State = iota

	// Shutdown is the state in which a node stops responding to external events
	// and closes its transport.
	Shutdown
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case Listening:
		return "Listening"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// Manager wraps a State with atomic get and set methods.
type Manager struct {
	state State
}

// GetState returns the current state.
func (b *Manager) GetState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

// SetState sets the state.
func (b *Manager) SetState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}
