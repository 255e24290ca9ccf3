package export

import (
	"bytes"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/polyferno/polyferno/src/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboxRecord(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	inbox := map[net.NodeID][]byte{
		3: {0x03, 0x33},
		1: {0x01},
		2: {},
	}

	record := InboxRecord(mem, 7, inbox)
	defer record.Release()

	require.Equal(t, int64(3), record.NumRows())
	assert.True(t, record.Schema().Equal(InboxSchema()))

	origins := record.Column(0).(*array.Uint64)
	rounds := record.Column(1).(*array.Uint64)
	models := record.Column(2).(*array.Binary)

	assert.Equal(t, []uint64{1, 2, 3}, origins.Uint64Values())
	for i := 0; i < 3; i++ {
		assert.Equal(t, uint64(7), rounds.Value(i))
		assert.Equal(t, inbox[net.NodeID(origins.Value(i))], models.Value(i))
	}
}

func TestSerializeInbox(t *testing.T) {
	inbox := map[net.NodeID][]byte{
		2: {0xAA},
		5: {0x01, 0x02, 0x03},
	}

	data, err := SerializeInbox(4, inbox)
	require.NoError(t, err)

	rows, err := ReadInbox(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []InboxRow{
		{Origin: 2, Round: 4, Model: []byte{0xAA}},
		{Origin: 5, Round: 4, Model: []byte{0x01, 0x02, 0x03}},
	}, rows)
}

func TestSerializeEmptyInbox(t *testing.T) {
	data, err := SerializeInbox(0, map[net.NodeID][]byte{})
	require.NoError(t, err)

	rows, err := ReadInbox(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadInboxWrongSchema(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "origin", Type: arrow.BinaryTypes.String},
	}, nil)

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()
	builder.Field(0).(*array.StringBuilder).Append("node1")
	record := builder.NewRecord()
	defer record.Release()

	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	require.NoError(t, writer.Write(record))
	require.NoError(t, writer.Close())

	_, err := ReadInbox(&buf)
	assert.Error(t, err)
}

func TestReadInboxGarbage(t *testing.T) {
	_, err := ReadInbox(bytes.NewReader([]byte("not arrow")))
	assert.Error(t, err)
}
