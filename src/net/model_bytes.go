package net

import (
	"bytes"
	"strconv"

	"github.com/polyferno/polyferno/src/common"
)

// ModelBytes is a byte buffer with a fixed maximum capacity holding the
// serialized representation of one model snapshot. Its content is opaque: it
// is moved, cloned and compared, never interpreted.
//
// Copying a ModelBytes value shares the underlying buffer; use Clone to obtain
// an independent copy.
type ModelBytes struct {
	data     []byte
	capacity int
}

// NewModelBytes returns an empty buffer that holds at most capacity bytes.
func NewModelBytes(capacity int) ModelBytes {
	return ModelBytes{capacity: capacity}
}

// ModelBytesFrom copies data into a new buffer of the given capacity. It fails
// with a CapacityExceeded error if data does not fit.
func ModelBytesFrom(capacity int, data []byte) (ModelBytes, error) {
	m := NewModelBytes(capacity)
	if err := m.Extend(data); err != nil {
		return ModelBytes{}, err
	}
	return m, nil
}

// Extend appends data to the buffer. Nothing is appended if the result would
// exceed the capacity.
func (m *ModelBytes) Extend(data []byte) error {
	if len(m.data)+len(data) > m.capacity {
		return common.NewGossipErr("ModelBytes", common.CapacityExceeded,
			strconv.Itoa(len(m.data)+len(data)))
	}
	m.data = append(m.data, data...)
	return nil
}

// Push appends a single byte.
func (m *ModelBytes) Push(b byte) error {
	return m.Extend([]byte{b})
}

// Bytes returns the content of the buffer. The returned slice must not be
// modified.
func (m ModelBytes) Bytes() []byte {
	return m.data
}

// Len returns the number of bytes held.
func (m ModelBytes) Len() int {
	return len(m.data)
}

// Cap returns the maximum number of bytes the buffer can hold.
func (m ModelBytes) Cap() int {
	return m.capacity
}

// Clone returns a deep copy of the buffer with the same capacity. Only the
// bytes held are copied, not the full capacity; the copy keeps enforcing the
// capacity as its bound.
func (m ModelBytes) Clone() ModelBytes {
	c := ModelBytes{capacity: m.capacity}
	if m.data != nil {
		c.data = make([]byte, len(m.data))
		copy(c.data, m.data)
	}
	return c
}

// Equal reports whether both buffers hold the same bytes. Capacities are not
// compared.
func (m ModelBytes) Equal(o ModelBytes) bool {
	return bytes.Equal(m.data, o.data)
}
