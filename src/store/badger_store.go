package store

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger"
	cm "github.com/polyferno/polyferno/src/common"
	"github.com/polyferno/polyferno/src/net"
	"github.com/sirupsen/logrus"
)

const (
	modelPrefix   = "model"
	lastRoundKey  = "last_round"
	roundKeyWidth = 20
)

// BadgerStore writes through an InmemStore to a badger database. Reads hit the
// cache first and fall back to the database, so a store opened on an existing
// directory serves everything persisted by previous runs.
type BadgerStore struct {
	inmemStore *InmemStore
	db         *badger.DB
	path       string
}

// NewBadgerStore opens an existing database or creates a new one if nothing is
// found in path.
func NewBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithTruncate(true)

	if logger != nil {
		sub := logger.WithFields(logrus.Fields{"ns": "badger"})
		opts = opts.WithLogger(sub)
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		inmemStore: NewInmemStore(),
		db:         handle,
		path:       path,
	}

	return store, nil
}

//==============================================================================
// Keys

func roundPrefix(round net.RoundID) []byte {
	return []byte(fmt.Sprintf("%s_%0*d_", modelPrefix, roundKeyWidth, uint64(round)))
}

func modelKey(round net.RoundID, origin net.NodeID) []byte {
	return []byte(fmt.Sprintf("%s%0*d", roundPrefix(round), roundKeyWidth, uint64(origin)))
}

//==============================================================================
// Implement the Store interface

// SetModel implements the Store interface.
func (s *BadgerStore) SetModel(round net.RoundID, origin net.NodeID, model []byte) error {
	if err := s.inmemStore.SetModel(round, origin, model); err != nil {
		return err
	}
	return s.dbSet(modelKey(round, origin), model)
}

// GetModel implements the Store interface.
func (s *BadgerStore) GetModel(round net.RoundID, origin net.NodeID) ([]byte, error) {
	model, err := s.inmemStore.GetModel(round, origin)
	if err != nil {
		model, err = s.dbGet(modelKey(round, origin))
	}
	return model, mapError(err, "Model", string(modelKey(round, origin)))
}

// RoundModels implements the Store interface. The database holds everything
// the cache does, so it is the only source.
func (s *BadgerStore) RoundModels(round net.RoundID) (map[net.NodeID][]byte, error) {
	return s.dbRoundModels(round)
}

// SetLastRound implements the Store interface.
func (s *BadgerStore) SetLastRound(round net.RoundID) error {
	if err := s.inmemStore.SetLastRound(round); err != nil {
		return err
	}
	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, uint64(round))
	return s.dbSet([]byte(lastRoundKey), val)
}

// LastRound implements the Store interface.
func (s *BadgerStore) LastRound() (net.RoundID, error) {
	if round, err := s.inmemStore.LastRound(); err == nil {
		return round, nil
	}

	val, err := s.dbGet([]byte(lastRoundKey))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return 0, cm.NewStoreErr("LastRound", cm.Empty, "")
		}
		return 0, err
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("corrupt last round value: %d bytes", len(val))
	}
	return net.RoundID(binary.BigEndian.Uint64(val)), nil
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	if err := s.inmemStore.Close(); err != nil {
		return err
	}
	return s.db.Close()
}

// StorePath implements the Store interface.
func (s *BadgerStore) StorePath() string {
	return s.path
}

//==============================================================================
// DB Methods

func (s *BadgerStore) dbGet(key []byte) ([]byte, error) {
	var res []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		res, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *BadgerStore) dbSet(key, val []byte) error {
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	if err := tx.Set(key, val); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *BadgerStore) dbRoundModels(round net.RoundID) (map[net.NodeID][]byte, error) {
	res := make(map[net.NodeID][]byte)
	prefix := roundPrefix(round)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			suffix := string(item.Key()[len(prefix):])
			origin, err := strconv.ParseUint(suffix, 10, 64)
			if err != nil {
				return fmt.Errorf("malformed model key %q: %v", item.Key(), err)
			}

			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			res[net.NodeID(origin)] = val
		}
		return nil
	})

	return res, err
}

func mapError(err error, name, key string) error {
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return cm.NewStoreErr(name, cm.KeyNotFound, key)
		}
	}
	return err
}
