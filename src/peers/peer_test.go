package peers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPeers() []*Peer {
	return []*Peer{
		NewPeer(3, "127.0.0.1:1339", "charlie"),
		NewPeer(1, "127.0.0.1:1337", "alice"),
		NewPeer(2, "127.0.0.1:1338", "bob"),
	}
}

func TestExcludePeer(t *testing.T) {
	peers := testPeers()

	index, others := ExcludePeer(peers, 1)
	assert.Equal(t, 1, index)
	assert.Len(t, others, 2)
	for _, p := range others {
		assert.NotEqual(t, uint64(1), p.ID)
	}

	index, others = ExcludePeer(peers, 42)
	assert.Equal(t, -1, index)
	assert.Len(t, others, 3)
}

func TestPeerSet(t *testing.T) {
	ps := NewPeerSet(testPeers())
	require.NoError(t, ps.Validate())

	assert.Equal(t, 3, ps.Len())
	assert.Equal(t, []uint64{3, 1, 2}, ps.IDs())
	assert.Equal(t, "alice", ps.ByID[1].Moniker)

	sorted := ps.Sorted()
	assert.Equal(t, uint64(1), sorted[0].ID)
	assert.Equal(t, uint64(3), sorted[2].ID)
	// Sorted does not reorder the set itself
	assert.Equal(t, uint64(3), ps.Peers[0].ID)

	selected, err := ps.Select([]uint64{2, 3})
	require.NoError(t, err)
	assert.Equal(t, "bob", selected[0].Moniker)
	assert.Equal(t, "charlie", selected[1].Moniker)

	_, err = ps.Select([]uint64{4})
	assert.Error(t, err)
}

func TestPeerSetValidate(t *testing.T) {
	dup := NewPeerSet([]*Peer{
		NewPeer(1, "a", ""),
		NewPeer(1, "b", ""),
	})
	assert.Error(t, dup.Validate())

	noAddr := NewPeerSet([]*Peer{NewPeer(1, "", "")})
	assert.Error(t, noAddr.Validate())
}

func TestPeerSetMarshal(t *testing.T) {
	ps := NewPeerSet(testPeers())

	b, err := ps.Marshal()
	require.NoError(t, err)

	back, err := NewPeerSetFromPeerSliceBytes(b)
	require.NoError(t, err)
	assert.Equal(t, ps.IDs(), back.IDs())
	assert.Equal(t, ps.ByID[2].NetAddr, back.ByID[2].NetAddr)
}
