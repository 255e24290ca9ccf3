package node

import (
	cm "github.com/polyferno/polyferno/src/common"
	"github.com/polyferno/polyferno/src/net"
	"github.com/polyferno/polyferno/src/peers"
)

// Neighbor is a peer this node sends to directly. Its knowledge set records the
// origins it is known to hold because it was seen relaying them. The set only
// grows and may lag behind reality; it is only used to skip redundant sends.
type Neighbor struct {
	ID        net.NodeID
	NetAddr   string
	Moniker   string
	knowledge *net.NodeSet
}

// Knowledge returns the origins the neighbor is known to hold.
func (n *Neighbor) Knowledge() []net.NodeID {
	return n.knowledge.IDs()
}

// Registry holds the neighbors of a node. It is fixed at construction.
type Registry struct {
	neighbors []*Neighbor
	byID      map[net.NodeID]*Neighbor
}

// NewRegistry creates a registry with one Neighbor per peer. Knowledge sets
// are bounded by numNodes.
func NewRegistry(numNodes int, neighbors []*peers.Peer) *Registry {
	r := &Registry{
		byID: make(map[net.NodeID]*Neighbor),
	}
	for _, p := range neighbors {
		if _, ok := r.byID[p.NodeID()]; ok {
			continue
		}
		n := &Neighbor{
			ID:        p.NodeID(),
			NetAddr:   p.NetAddr,
			Moniker:   p.Moniker,
			knowledge: net.NewNodeSet(numNodes),
		}
		r.neighbors = append(r.neighbors, n)
		r.byID[n.ID] = n
	}
	return r
}

// Lookup returns the neighbor with the given id, or a NeighborNotFound error.
func (r *Registry) Lookup(id net.NodeID) (*Neighbor, error) {
	n, ok := r.byID[id]
	if !ok {
		return nil, cm.NewGossipErr("Registry", cm.NeighborNotFound, id.String())
	}
	return n, nil
}

// RecordRelay records that peer holds the model of origin.
func (r *Registry) RecordRelay(peer, origin net.NodeID) error {
	n, err := r.Lookup(peer)
	if err != nil {
		return err
	}
	_, err = n.knowledge.Insert(origin)
	return err
}

// AlreadyKnows reports whether peer is known to hold the model of origin. A
// peer always knows its own model.
func (r *Registry) AlreadyKnows(peer, origin net.NodeID) bool {
	if peer == origin {
		return true
	}
	n, ok := r.byID[peer]
	if !ok {
		return false
	}
	return n.knowledge.Contains(origin)
}

// All returns the neighbors in registration order.
func (r *Registry) All() []*Neighbor {
	return r.neighbors
}

// Len ...
func (r *Registry) Len() int {
	return len(r.neighbors)
}
