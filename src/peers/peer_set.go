package peers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// PeerSet is the set of Peers forming a gossip topology
type PeerSet struct {
	Peers []*Peer          `json:"peers"`
	ByID  map[uint64]*Peer `json:"-"`
}

/* Constructors */

// NewPeerSet creates a new PeerSet from a list of Peers
func NewPeerSet(peers []*Peer) *PeerSet {
	peerSet := &PeerSet{
		ByID: make(map[uint64]*Peer),
	}

	for _, peer := range peers {
		peerSet.ByID[peer.ID] = peer
	}

	peerSet.Peers = peers

	return peerSet
}

// NewPeerSetFromPeerSliceBytes creates a new PeerSet from a peerSlice in Bytes format
func NewPeerSetFromPeerSliceBytes(peerSliceBytes []byte) (*PeerSet, error) {
	// Decode Peer slice
	peers := []*Peer{}

	b := bytes.NewBuffer(peerSliceBytes)
	dec := json.NewDecoder(b) //will read from b

	err := dec.Decode(&peers)
	if err != nil {
		return nil, err
	}
	// create new PeerSet
	return NewPeerSet(peers), nil
}

// Select returns the peers whose ids are listed, in the order given. An unknown
// id is an error.
func (peerSet *PeerSet) Select(ids []uint64) ([]*Peer, error) {
	res := make([]*Peer, 0, len(ids))
	for _, id := range ids {
		p, ok := peerSet.ByID[id]
		if !ok {
			return nil, fmt.Errorf("peer %d is not in the peer-set", id)
		}
		res = append(res, p)
	}
	return res, nil
}

/* ToSlice Methods */

// IDs returns the PeerSet's slice of IDs
func (peerSet *PeerSet) IDs() []uint64 {
	res := []uint64{}

	for _, peer := range peerSet.Peers {
		res = append(res, peer.ID)
	}

	return res
}

/* Utilities */

// Len returns the number of Peers in the PeerSet
func (peerSet *PeerSet) Len() int {
	return len(peerSet.ByID)
}

// Validate checks that ids are unique and that every peer has an address.
func (peerSet *PeerSet) Validate() error {
	if len(peerSet.ByID) != len(peerSet.Peers) {
		return fmt.Errorf("peer-set contains duplicate ids")
	}
	for _, p := range peerSet.Peers {
		if p.NetAddr == "" {
			return fmt.Errorf("peer %d has no address", p.ID)
		}
	}
	return nil
}

// Sorted returns a copy of the peers ordered by ID
func (peerSet *PeerSet) Sorted() []*Peer {
	res := make([]*Peer, len(peerSet.Peers))
	copy(res, peerSet.Peers)
	sort.Sort(ByID(res))
	return res
}

// Marshal marshals the peerset
func (peerSet *PeerSet) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(peerSet.Peers); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ByID implements sort.Interface for Peers based on the ID field.
type ByID []*Peer

func (a ByID) Len() int           { return len(a) }
func (a ByID) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a ByID) Less(i, j int) bool { return a[i].ID < a[j].ID }
