// Package net defines the messages exchanged by gossip nodes and the
// transports that carry them.
//
// Messages
//
// Every hop carries a Header {Src, Dst} naming the immediate sender and
// receiver. A BroadcastRequest carries the model of an Origin for a Round; when
// a node relays someone else's model, Origin and Header.Src differ. A
// BroadcastResponse reports the origins a node holds for a round.
//
// Model buffers (ModelBytes) and id sets (NodeSet) have a fixed capacity set by
// the deployment's Limits. Inserting past the capacity fails with a
// CapacityExceeded error; nothing is silently truncated.
//
// Transports
//
// A Transport hands inbound requests to the node through the Consumer channel
// and accepts outbound requests through Broadcast, which only enqueues. There
// are three implementations:
//
// - Inmem: in-memory transport used for testing
//
// - TCP: msgpack framed request/response over plain TCP, with a bounded
// outbound queue and a pool of connections per target
//
// - ZMQ: push-only transport over ZeroMQ ROUTER/DEALER sockets
//
// A failed delivery is logged by the transport and never retried there; the
// node keeps propagating to its other neighbors.
package net
