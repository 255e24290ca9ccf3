package net

import (
	"strconv"

	"github.com/polyferno/polyferno/src/common"
)

// NodeSet is an insertion-ordered set of NodeIDs bounded by a fixed capacity,
// normally the number of nodes in the topology. It only grows.
type NodeSet struct {
	ids      []NodeID
	capacity int
}

// NewNodeSet returns an empty set holding at most capacity ids.
func NewNodeSet(capacity int) *NodeSet {
	return &NodeSet{
		ids:      make([]NodeID, 0, capacity),
		capacity: capacity,
	}
}

// NodeSetFrom builds a set from ids. Duplicates collapse; more than capacity
// distinct ids is a CapacityExceeded error.
func NodeSetFrom(capacity int, ids []NodeID) (*NodeSet, error) {
	s := NewNodeSet(capacity)
	for _, id := range ids {
		if _, err := s.Insert(id); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Insert adds id to the set and reports whether it was newly added. Inserting
// an id that is already present is a no-op, even when the set is full.
func (s *NodeSet) Insert(id NodeID) (bool, error) {
	if s.Contains(id) {
		return false, nil
	}
	if len(s.ids) >= s.capacity {
		return false, common.NewGossipErr("NodeSet", common.CapacityExceeded,
			strconv.Itoa(len(s.ids)+1))
	}
	s.ids = append(s.ids, id)
	return true, nil
}

// Contains reports whether id is in the set.
func (s *NodeSet) Contains(id NodeID) bool {
	for _, i := range s.ids {
		if i == id {
			return true
		}
	}
	return false
}

// Len ...
func (s *NodeSet) Len() int {
	return len(s.ids)
}

// Cap ...
func (s *NodeSet) Cap() int {
	return s.capacity
}

// IDs returns a copy of the ids in insertion order.
func (s *NodeSet) IDs() []NodeID {
	res := make([]NodeID, len(s.ids))
	copy(res, s.ids)
	return res
}

// Clone returns a deep copy of the set.
func (s *NodeSet) Clone() *NodeSet {
	c := NewNodeSet(s.capacity)
	c.ids = append(c.ids, s.ids...)
	return c
}
