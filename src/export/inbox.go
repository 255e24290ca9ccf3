// Package export writes the inbox of a round as an Arrow IPC stream so that an
// aggregation process can consume the received models without parsing the
// wire format.
package export

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/polyferno/polyferno/src/net"
)

// InboxSchema returns the Arrow schema of an exported inbox.
//
// Fields:
//   - origin: uint64 - id of the node that produced the model
//   - round: uint64 - round the model was received in
//   - model: binary - serialized model, opaque
func InboxSchema() *arrow.Schema {
	return arrow.NewSchema(
		[]arrow.Field{
			{Name: "origin", Type: arrow.PrimitiveTypes.Uint64},
			{Name: "round", Type: arrow.PrimitiveTypes.Uint64},
			{Name: "model", Type: arrow.BinaryTypes.Binary},
		},
		nil,
	)
}

// InboxRow is one model of an exported inbox.
type InboxRow struct {
	Origin net.NodeID
	Round  net.RoundID
	Model  []byte
}

// InboxRecord converts an inbox to an Arrow record, one row per origin in
// ascending order. The caller must release the record.
func InboxRecord(mem memory.Allocator, round net.RoundID, inbox map[net.NodeID][]byte) arrow.Record {
	origins := make([]net.NodeID, 0, len(inbox))
	for o := range inbox {
		origins = append(origins, o)
	}
	sort.Slice(origins, func(i, j int) bool { return origins[i] < origins[j] })

	builder := array.NewRecordBuilder(mem, InboxSchema())
	defer builder.Release()

	originBuilder := builder.Field(0).(*array.Uint64Builder)
	roundBuilder := builder.Field(1).(*array.Uint64Builder)
	modelBuilder := builder.Field(2).(*array.BinaryBuilder)

	for _, o := range origins {
		originBuilder.Append(uint64(o))
		roundBuilder.Append(uint64(round))
		modelBuilder.Append(inbox[o])
	}

	return builder.NewRecord()
}

// WriteInbox writes the inbox as an Arrow IPC stream holding a single record.
func WriteInbox(w io.Writer, round net.RoundID, inbox map[net.NodeID][]byte) error {
	record := InboxRecord(memory.DefaultAllocator, round, inbox)
	defer record.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(record.Schema()))

	if err := writer.Write(record); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write record: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}

	return nil
}

// SerializeInbox returns the IPC stream written by WriteInbox.
func SerializeInbox(round net.RoundID, inbox map[net.NodeID][]byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteInbox(&buf, round, inbox); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadInbox reads every row of an IPC stream written by WriteInbox. Models are
// copied out of the Arrow buffers.
func ReadInbox(r io.Reader) ([]InboxRow, error) {
	reader, err := ipc.NewReader(r, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}
	defer reader.Release()

	if !reader.Schema().Equal(InboxSchema()) {
		return nil, fmt.Errorf("unexpected schema: %s", reader.Schema())
	}

	rows := []InboxRow{}
	for reader.Next() {
		record := reader.Record()

		origins := record.Column(0).(*array.Uint64)
		rounds := record.Column(1).(*array.Uint64)
		models := record.Column(2).(*array.Binary)

		for i := 0; i < int(record.NumRows()); i++ {
			rows = append(rows, InboxRow{
				Origin: net.NodeID(origins.Value(i)),
				Round:  net.RoundID(rounds.Value(i)),
				Model:  append([]byte{}, models.Value(i)...),
			})
		}
	}

	if reader.Err() != nil {
		return nil, reader.Err()
	}

	return rows, nil
}
