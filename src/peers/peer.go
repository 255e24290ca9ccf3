package peers

import (
	"fmt"

	"github.com/polyferno/polyferno/src/net"
)

// Peer is a node of the static topology. The ID is assigned by the operator
// and must be unique within the topology; NetAddr is where the node's
// transport listens.
type Peer struct {
	ID      uint64
	NetAddr string
	Moniker string
}

// NewPeer creates a new peer.
func NewPeer(id uint64, netAddr, moniker string) *Peer {
	return &Peer{
		ID:      id,
		NetAddr: netAddr,
		Moniker: moniker,
	}
}

// NodeID returns the peer's id as used on the wire.
func (p *Peer) NodeID() net.NodeID {
	return net.NodeID(p.ID)
}

// String ...
func (p *Peer) String() string {
	if p.Moniker != "" {
		return fmt.Sprintf("%s(%d)@%s", p.Moniker, p.ID, p.NetAddr)
	}
	return fmt.Sprintf("%d@%s", p.ID, p.NetAddr)
}

// ExcludePeer is used to exclude a single peer from a list of peers.
func ExcludePeer(peers []*Peer, id uint64) (int, []*Peer) {
	index := -1
	otherPeers := make([]*Peer, 0, len(peers))
	for i, p := range peers {
		if p.ID != id {
			otherPeers = append(otherPeers, p)
		} else {
			index = i
		}
	}
	return index, otherPeers
}
