package peers

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Classification is what we believe a peer's consensus role to be.
type Classification uint8

const (
	// FullNode is any peer that has not proven it holds a key of the current
	// validator set.
	FullNode Classification = iota
	// Validator is a peer that proved it holds a key of the current validator
	// set.
	Validator
)

// String ...
func (c Classification) String() string {
	switch c {
	case FullNode:
		return "FullNode"
	case Validator:
		return "Validator"
	default:
		return "Unknown"
	}
}

// MarshalText makes classifications readable in JSON output.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Metadata is what the networking layer learned about a peer when its
// identification completed.
type Metadata struct {
	AgentVersion string
	ListenAddrs  []string
	IdentifiedAt time.Time
}

// Record is everything the Store knows about one peer.
type Record struct {
	PeerID peer.ID

	// ConsensusPublicKey is the key from the last verified proof. It is kept
	// when the key leaves the validator set so that the peer is promoted again,
	// without a new proof, if the key comes back.
	ConsensusPublicKey []byte

	// DerivedAddress and Moniker are set only while ConsensusPublicKey is in
	// the validator set.
	DerivedAddress string
	Moniker        string

	Classification Classification
	Metadata       Metadata
}

func (r *Record) clone() Record {
	c := *r
	if r.ConsensusPublicKey != nil {
		c.ConsensusPublicKey = append([]byte(nil), r.ConsensusPublicKey...)
	}
	if r.Metadata.ListenAddrs != nil {
		c.Metadata.ListenAddrs = append([]string(nil), r.Metadata.ListenAddrs...)
	}
	return c
}

// Observer is notified when a peer gets a record, and when its classification
// or derived address changes. Calls are made outside of the Store's lock, from
// the goroutine that caused the change.
type Observer interface {
	ClassificationChanged(rec Record)
}
