package store

import (
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger"
	cm "github.com/mosaicnetworks/valproof/src/common"
	"github.com/mosaicnetworks/valproof/src/peers"
	"github.com/sirupsen/logrus"
)

const (
	proofKey      = "proof"
	validatorsKey = "validators"
)

// BadgerStore implements the Store interface with a Badger database.
type BadgerStore struct {
	db   *badger.DB
	path string
}

// NewBadgerStore opens an existing database or creates a new one if nothing is
// found in path.
func NewBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithTruncate(true)

	if logger != nil {
		sub := logger.WithFields(logrus.Fields{"ns": "badger"})
		opts = opts.WithLogger(sub)
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerStore{
		db:   handle,
		path: path,
	}, nil
}

// GetProof implements the Store interface.
func (s *BadgerStore) GetProof() ([]byte, error) {
	res, err := s.dbGet([]byte(proofKey))
	return res, mapError(err, "Proof", proofKey)
}

// SetProof implements the Store interface.
func (s *BadgerStore) SetProof(proof []byte) error {
	return s.dbSet([]byte(proofKey), proof)
}

// DeleteProof implements the Store interface.
func (s *BadgerStore) DeleteProof() error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(proofKey))
	})
}

// GetValidatorSet implements the Store interface.
func (s *BadgerStore) GetValidatorSet() (*peers.PeerSet, error) {
	raw, err := s.dbGet([]byte(validatorsKey))
	if err != nil {
		return nil, mapError(err, "ValidatorSet", validatorsKey)
	}

	var ps []*peers.Peer
	if err := json.Unmarshal(raw, &ps); err != nil {
		return nil, err
	}

	return peers.NewPeerSet(ps), nil
}

// SetValidatorSet implements the Store interface.
func (s *BadgerStore) SetValidatorSet(set *peers.PeerSet) error {
	raw, err := set.Marshal()
	if err != nil {
		return err
	}
	return s.dbSet([]byte(validatorsKey), raw)
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// StorePath implements the Store interface.
func (s *BadgerStore) StorePath() string {
	return s.path
}

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
	return res, err
}

func (s *BadgerStore) dbSet(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func mapError(err error, name, key string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return cm.NewStoreErr(name, cm.KeyNotFound, key)
	}
	return err
}
