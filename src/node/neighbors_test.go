package node

import (
	"reflect"
	"testing"

	"github.com/polyferno/polyferno/src/common"
	"github.com/polyferno/polyferno/src/net"
	"github.com/polyferno/polyferno/src/peers"
)

func testRegistry(numNodes int, ids ...uint64) *Registry {
	ps := []*peers.Peer{}
	for _, id := range ids {
		ps = append(ps, peers.NewPeer(id, testAddr(net.NodeID(id)), ""))
	}
	return NewRegistry(numNodes, ps)
}

func TestRegistryLookup(t *testing.T) {
	r := testRegistry(4, 2, 3, 2)

	if r.Len() != 2 {
		t.Fatalf("duplicate peers should be registered once, got %d neighbors", r.Len())
	}

	n, err := r.Lookup(3)
	if err != nil {
		t.Fatal(err)
	}
	if n.ID != 3 || n.NetAddr != "node3" {
		t.Fatalf("unexpected neighbor %#v", n)
	}

	if _, err := r.Lookup(4); !common.IsGossip(err, common.NeighborNotFound) {
		t.Fatalf("expected NeighborNotFound, got %v", err)
	}
	if err := r.RecordRelay(4, 1); !common.IsGossip(err, common.NeighborNotFound) {
		t.Fatalf("expected NeighborNotFound, got %v", err)
	}
}

func TestRegistryKnowledge(t *testing.T) {
	r := testRegistry(3, 2, 3)

	if !r.AlreadyKnows(2, 2) {
		t.Fatalf("a neighbor always knows its own model")
	}
	if r.AlreadyKnows(2, 1) {
		t.Fatalf("nothing was recorded yet")
	}
	if r.AlreadyKnows(5, 1) {
		t.Fatalf("an unknown peer knows nothing")
	}

	snapshots := [][]net.NodeID{}
	for _, o := range []net.NodeID{1, 3, 1, 4} {
		if err := r.RecordRelay(2, o); err != nil {
			t.Fatal(err)
		}
		n, _ := r.Lookup(2)
		snapshots = append(snapshots, n.Knowledge())
	}

	// knowledge only grows
	for i := 1; i < len(snapshots); i++ {
		prev := map[net.NodeID]bool{}
		for _, o := range snapshots[i-1] {
			prev[o] = true
		}
		for o := range prev {
			found := false
			for _, p := range snapshots[i] {
				if p == o {
					found = true
				}
			}
			if !found {
				t.Fatalf("origin %d was forgotten: %v -> %v", o, snapshots[i-1], snapshots[i])
			}
		}
	}

	if !reflect.DeepEqual(snapshots[3], []net.NodeID{1, 3, 4}) {
		t.Fatalf("unexpected knowledge %v", snapshots[3])
	}
	if !r.AlreadyKnows(2, 4) || r.AlreadyKnows(3, 4) {
		t.Fatalf("knowledge sets should be per neighbor")
	}

	// the set is bounded by the number of nodes
	if err := r.RecordRelay(2, 5); !common.IsGossip(err, common.CapacityExceeded) {
		t.Fatalf("expected CapacityExceeded, got %v", err)
	}
	if err := r.RecordRelay(2, 1); err != nil {
		t.Fatalf("recording a known origin in a full set should succeed: %v", err)
	}
}
