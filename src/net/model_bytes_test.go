package net

import (
	"testing"

	"github.com/polyferno/polyferno/src/common"
)

func TestModelBytesCapacityBoundary(t *testing.T) {
	const modelSize = 8

	exact := make([]byte, modelSize)
	m, err := ModelBytesFrom(modelSize, exact)
	if err != nil {
		t.Fatalf("inserting exactly %d bytes should succeed: %v", modelSize, err)
	}
	if m.Len() != modelSize {
		t.Fatalf("Len should be %d, not %d", modelSize, m.Len())
	}

	_, err = ModelBytesFrom(modelSize, make([]byte, modelSize+1))
	if !common.IsGossip(err, common.CapacityExceeded) {
		t.Fatalf("inserting %d bytes should fail with CapacityExceeded, got %v", modelSize+1, err)
	}

	if err := m.Push(0xFF); !common.IsGossip(err, common.CapacityExceeded) {
		t.Fatalf("pushing into a full buffer should fail with CapacityExceeded, got %v", err)
	}
	if m.Len() != modelSize {
		t.Fatalf("a failed Push should leave the buffer unchanged")
	}
}

func TestModelBytesExtendIsAllOrNothing(t *testing.T) {
	m := NewModelBytes(4)
	if err := m.Extend([]byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := m.Extend([]byte{4, 5}); err == nil {
		t.Fatalf("Extend past capacity should fail")
	}
	if !m.Equal(mustModelBytes(t, 4, []byte{1, 2, 3})) {
		t.Fatalf("buffer should still be [1 2 3], not %v", m.Bytes())
	}
}

func TestModelBytesClone(t *testing.T) {
	m := mustModelBytes(t, 16, []byte{0xAA, 0xBB})
	c := m.Clone()

	if !c.Equal(m) {
		t.Fatalf("clone should equal original")
	}
	if c.Cap() != m.Cap() {
		t.Fatalf("clone capacity should be %d, not %d", m.Cap(), c.Cap())
	}

	if err := c.Push(0xCC); err != nil {
		t.Fatal(err)
	}
	c.Bytes()[0] = 0x00

	if m.Len() != 2 || m.Bytes()[0] != 0xAA {
		t.Fatalf("mutating the clone should not affect the original: %v", m.Bytes())
	}
}

func mustModelBytes(t *testing.T, capacity int, data []byte) ModelBytes {
	m, err := ModelBytesFrom(capacity, data)
	if err != nil {
		t.Fatal(err)
	}
	return m
}
