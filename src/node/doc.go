// Package node implements the reactive component of a polyferno node.
//
// Propagation
//
// Every node holds, for the current round, an inbox mapping each origin to the
// last model received from it. When a BroadcastRequest arrives, the node
// stores the model under its origin and forwards it to each neighbor except
// the origin itself and the neighbors already known to hold it.
//
// What a neighbor holds is learned passively: when a neighbor sends us the
// model of an origin other than itself, it is relaying that model and
// therefore has it. These knowledge sets only grow and are never checked
// against the neighbors themselves; they only spare redundant sends. Flooding
// to every neighbor would reach the same final state.
//
// A node introduces its own model with Submit, which starts the same
// forwarding step with the node as origin. Moving to a new round is decided by
// the caller of Submit and clears the inbox.
//
// Run loop
//
// Node runs a single loop that consumes inbound RPCs from the transport,
// submissions, and heartbeat ticks. The Core it drives is not safe for
// concurrent use and is only touched from that loop, or under coreLock by the
// read accessors. Sends are handed to the transport, which queues them, so the
// loop never waits on the network.
//
// Errors
//
// A send refused by the transport is logged and the forwarding step moves on
// to the next neighbor. CapacityExceeded, NeighborNotFound and MissingOrigin
// errors denote a misconfigured topology: they stop the node and are returned
// by Run.
package node
