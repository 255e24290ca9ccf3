package net

import (
	"github.com/ugorji/go/codec"
)

// Limits are the capacity constants of a deployment. They must match across
// all participating nodes; decoding enforces them.
type Limits struct {
	ModelSize int
	NumNodes  int
}

var msgpackHandle = newMsgpackHandle()

func newMsgpackHandle() *codec.MsgpackHandle {
	mh := new(codec.MsgpackHandle)
	// encode []byte as msgpack bin rather than str
	mh.WriteExt = true
	return mh
}

// wire formats carry plain slices; bounded types are rebuilt on decode.

type wireBroadcastRequest struct {
	Origin uint64
	Round  uint64
	Model  []byte
}

type wireBroadcastResponse struct {
	Round     uint64
	Knowledge []uint64
}

type wireEnvelope struct {
	Type    uint8
	Header  Header
	Request wireBroadcastRequest
}

func toWireRequest(req *BroadcastRequest) wireBroadcastRequest {
	return wireBroadcastRequest{
		Origin: uint64(req.Origin),
		Round:  uint64(req.Round),
		Model:  req.Model.Bytes(),
	}
}

func toWireResponse(resp *BroadcastResponse) wireBroadcastResponse {
	w := wireBroadcastResponse{Round: uint64(resp.Round)}
	for _, id := range resp.Knowledge.IDs() {
		w.Knowledge = append(w.Knowledge, uint64(id))
	}
	return w
}

func (l Limits) fromWireRequest(w *wireBroadcastRequest) (*BroadcastRequest, error) {
	model, err := ModelBytesFrom(l.ModelSize, w.Model)
	if err != nil {
		return nil, err
	}
	return &BroadcastRequest{
		Origin: NodeID(w.Origin),
		Round:  RoundID(w.Round),
		Model:  model,
	}, nil
}

func (l Limits) fromWireResponse(w *wireBroadcastResponse) (*BroadcastResponse, error) {
	ids := make([]NodeID, 0, len(w.Knowledge))
	for _, id := range w.Knowledge {
		ids = append(ids, NodeID(id))
	}
	return NewBroadcastResponse(RoundID(w.Round), l.NumNodes, ids)
}

func encodeEnvelope(rpcType uint8, header Header, req *BroadcastRequest) ([]byte, error) {
	env := wireEnvelope{
		Type:    rpcType,
		Header:  header,
		Request: toWireRequest(req),
	}
	var b []byte
	if err := codec.NewEncoderBytes(&b, msgpackHandle).Encode(&env); err != nil {
		return nil, err
	}
	return b, nil
}

func (l Limits) decodeEnvelope(data []byte) (uint8, Header, *BroadcastRequest, error) {
	var env wireEnvelope
	dec := codec.NewDecoderBytes(data, msgpackHandle)
	if err := dec.Decode(&env); err != nil {
		return 0, Header{}, nil, err
	}
	req, err := l.fromWireRequest(&env.Request)
	if err != nil {
		return 0, Header{}, nil, err
	}
	return env.Type, env.Header, req, nil
}
