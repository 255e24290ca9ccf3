package store

import (
	"sync"

	cm "github.com/polyferno/polyferno/src/common"
	"github.com/polyferno/polyferno/src/net"
)

// InmemStore implements the Store interface with in-memory maps. Models are
// copied in and out so callers never share buffers with the store.
type InmemStore struct {
	sync.RWMutex
	models    map[net.RoundID]map[net.NodeID][]byte
	lastRound *net.RoundID
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{
		models: make(map[net.RoundID]map[net.NodeID][]byte),
	}
}

// SetModel implements the Store interface.
func (s *InmemStore) SetModel(round net.RoundID, origin net.NodeID, model []byte) error {
	s.Lock()
	defer s.Unlock()

	roundModels, ok := s.models[round]
	if !ok {
		roundModels = make(map[net.NodeID][]byte)
		s.models[round] = roundModels
	}
	roundModels[origin] = copyBytes(model)

	return nil
}

// GetModel implements the Store interface.
func (s *InmemStore) GetModel(round net.RoundID, origin net.NodeID) ([]byte, error) {
	s.RLock()
	defer s.RUnlock()

	model, ok := s.models[round][origin]
	if !ok {
		return nil, cm.NewStoreErr("Model", cm.KeyNotFound, string(modelKey(round, origin)))
	}
	return copyBytes(model), nil
}

// RoundModels implements the Store interface.
func (s *InmemStore) RoundModels(round net.RoundID) (map[net.NodeID][]byte, error) {
	s.RLock()
	defer s.RUnlock()

	res := make(map[net.NodeID][]byte)
	for origin, model := range s.models[round] {
		res[origin] = copyBytes(model)
	}
	return res, nil
}

// SetLastRound implements the Store interface.
func (s *InmemStore) SetLastRound(round net.RoundID) error {
	s.Lock()
	defer s.Unlock()

	s.lastRound = &round
	return nil
}

// LastRound implements the Store interface.
func (s *InmemStore) LastRound() (net.RoundID, error) {
	s.RLock()
	defer s.RUnlock()

	if s.lastRound == nil {
		return 0, cm.NewStoreErr("LastRound", cm.Empty, "")
	}
	return *s.lastRound, nil
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return ""
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	res := make([]byte, len(b))
	copy(res, b)
	return res
}
