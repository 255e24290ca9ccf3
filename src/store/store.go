package store

import "github.com/polyferno/polyferno/src/net"

// Store is an interface for backend stores. It keeps the models received in
// each round so that a node can answer queries about its inbox and reload it
// after a restart.
type Store interface {
	// SetModel records the model of origin for round, replacing any previous
	// value.
	SetModel(round net.RoundID, origin net.NodeID, model []byte) error
	// GetModel returns the model of origin for round.
	GetModel(round net.RoundID, origin net.NodeID) ([]byte, error)
	// RoundModels returns every model recorded for round, by origin.
	RoundModels(round net.RoundID) (map[net.NodeID][]byte, error)
	// SetLastRound records the round the node is currently working on.
	SetLastRound(round net.RoundID) error
	// LastRound returns the last round recorded with SetLastRound.
	LastRound() (net.RoundID, error)
	// Close closes the underlying database.
	Close() error
	// StorePath returns the filepath of the underlying database.
	StorePath() string
}
