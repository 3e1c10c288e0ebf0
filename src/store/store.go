// Package store persists what a node needs across restarts: the proof it
// announces and the last validator set it was given.
package store

import "github.com/mosaicnetworks/valproof/src/peers"

// Store is an interface for backend stores.
type Store interface {
	// GetProof returns our signed proof, or a KeyNotFound StoreErr if none was
	// provisioned.
	GetProof() ([]byte, error)
	// SetProof stores our signed proof, replacing any previous one.
	SetProof(proof []byte) error
	// DeleteProof removes our proof.
	DeleteProof() error
	// GetValidatorSet returns the last validator set that was stored.
	GetValidatorSet() (*peers.PeerSet, error)
	// SetValidatorSet stores the current validator set.
	SetValidatorSet(set *peers.PeerSet) error
	// Close closes the underlying database.
	Close() error
	// StorePath returns the filepath of the underlying database.
	StorePath() string
}
