// Package peers defines the nodes of a static gossip topology and loads them
// from disk.
//
// A peer is identified by a numeric ID, unique within the topology, and
// carries the address where its transport listens plus an optional moniker.
// The topology does not change while a node runs: upon starting up, a node
// expects to find a peers.json file in its data directory listing every peer,
// itself included. Which of those peers a node talks to directly is decided by
// the node's configuration; by default it is every other peer.
package peers
