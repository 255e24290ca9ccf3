package net

import "strconv"

// NodeID identifies a node. It is stable for the lifetime of the topology and
// doubles as routing key.
type NodeID uint64

// String ...
func (id NodeID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// RoundID identifies a training round. Rounds only go up; the propagation
// logic never branches on their order.
type RoundID uint64

// Header is attached to every request and response. It identifies the
// immediate sender and receiver of one hop, not the origin of the model.
type Header struct {
	Src NodeID
	Dst NodeID
}

// BroadcastRequest asks the receiver to take the model of Origin for Round and
// to keep propagating it. Origin differs from Header.Src when the sender is
// relaying someone else's model.
type BroadcastRequest struct {
	Origin NodeID
	Round  RoundID
	Model  ModelBytes
}

// Clone returns a deep copy of the request.
func (r *BroadcastRequest) Clone() *BroadcastRequest {
	return &BroadcastRequest{
		Origin: r.Origin,
		Round:  r.Round,
		Model:  r.Model.Clone(),
	}
}

// BroadcastResponse carries the responder's knowledge for a round: the origins
// whose model it holds.
type BroadcastResponse struct {
	Round     RoundID
	Knowledge NodeSet
}

// NewBroadcastResponse builds a response whose knowledge set is bounded by
// numNodes.
func NewBroadcastResponse(round RoundID, numNodes int, knowledge []NodeID) (*BroadcastResponse, error) {
	set, err := NodeSetFrom(numNodes, knowledge)
	if err != nil {
		return nil, err
	}
	return &BroadcastResponse{
		Round:     round,
		Knowledge: *set,
	}, nil
}
