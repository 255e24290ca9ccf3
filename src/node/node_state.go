package node

import (
	"sort"

	cm "github.com/polyferno/polyferno/src/common"
	"github.com/polyferno/polyferno/src/net"
)

// InboxEntry is a received model and the round it was tagged with.
type InboxEntry struct {
	Round net.RoundID
	Model net.ModelBytes
}

// NodeState is the per-round bookkeeping of a node: the current round, the
// models received by origin, and the node's own model.
//
// The inbox may hold models of a round the node has not reached yet. They are
// kept when the node advances to that round.
type NodeState struct {
	Round net.RoundID
	Inbox map[net.NodeID]InboxEntry
	Model []byte
}

// NewNodeState ...
func NewNodeState(round net.RoundID) *NodeState {
	return &NodeState{
		Round: round,
		Inbox: make(map[net.NodeID]InboxEntry),
	}
}

// Reset moves to round and drops the inbox entries of every other round. The
// node's own model is kept until it is replaced.
func (s *NodeState) Reset(round net.RoundID) {
	s.Round = round
	for o, e := range s.Inbox {
		if e.Round != round {
			delete(s.Inbox, o)
		}
	}
}

// Insert stores a copy of model under origin, tagged with round, overwriting
// any previous value. The inbox holds at most limits.NumNodes origins and
// models of at most limits.ModelSize bytes.
func (s *NodeState) Insert(origin net.NodeID, round net.RoundID, model []byte, limits net.Limits) error {
	if _, ok := s.Inbox[origin]; !ok && len(s.Inbox) >= limits.NumNodes {
		return cm.NewGossipErr("Inbox", cm.CapacityExceeded, origin.String())
	}
	m, err := net.ModelBytesFrom(limits.ModelSize, model)
	if err != nil {
		return err
	}
	s.Inbox[origin] = InboxEntry{Round: round, Model: m}
	return nil
}

// Origins returns, in ascending order, the origins held in the inbox for the
// current round.
func (s *NodeState) Origins() []net.NodeID {
	res := make([]net.NodeID, 0, len(s.Inbox))
	for o, e := range s.Inbox {
		if e.Round == s.Round {
			res = append(res, o)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}
