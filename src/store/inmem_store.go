package store

import (
	"sync"

	cm "github.com/mosaicnetworks/valproof/src/common"
	"github.com/mosaicnetworks/valproof/src/peers"
)

// InmemStore implements the Store interface in memory.
type InmemStore struct {
	sync.RWMutex
	proof      []byte
	validators *peers.PeerSet
	closed     bool
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{}
}

// GetProof implements the Store interface.
func (s *InmemStore) GetProof() ([]byte, error) {
	s.RLock()
	defer s.RUnlock()

	if s.closed {
		return nil, cm.NewStoreErr("Proof", cm.Closed, proofKey)
	}
	if s.proof == nil {
		return nil, cm.NewStoreErr("Proof", cm.KeyNotFound, proofKey)
	}
	return append([]byte(nil), s.proof...), nil
}

// SetProof implements the Store interface.
func (s *InmemStore) SetProof(proof []byte) error {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return cm.NewStoreErr("Proof", cm.Closed, proofKey)
	}
	s.proof = append([]byte(nil), proof...)
	return nil
}

// DeleteProof implements the Store interface.
func (s *InmemStore) DeleteProof() error {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return cm.NewStoreErr("Proof", cm.Closed, proofKey)
	}
	s.proof = nil
	return nil
}

// GetValidatorSet implements the Store interface.
func (s *InmemStore) GetValidatorSet() (*peers.PeerSet, error) {
	s.RLock()
	defer s.RUnlock()

	if s.closed {
		return nil, cm.NewStoreErr("ValidatorSet", cm.Closed, validatorsKey)
	}
	if s.validators == nil {
		return nil, cm.NewStoreErr("ValidatorSet", cm.KeyNotFound, validatorsKey)
	}
	return s.validators, nil
}

// SetValidatorSet implements the Store interface. PeerSets are immutable so
// the set is kept as is.
func (s *InmemStore) SetValidatorSet(set *peers.PeerSet) error {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return cm.NewStoreErr("ValidatorSet", cm.Closed, validatorsKey)
	}
	s.validators = set
	return nil
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	s.Lock()
	defer s.Unlock()
	s.closed = true
	return nil
}

// StorePath implements the Store interface. InmemStore has no path.
func (s *InmemStore) StorePath() string {
	return ""
}
