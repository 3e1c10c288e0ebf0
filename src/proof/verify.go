package proof

import (
	"bytes"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Reason classifies the outcome of Verify.
type Reason uint8

const (
	// Valid means the proof passed every check.
	Valid Reason = iota

	// DecodeFailure means the payload could not be decoded, typically because
	// the sender runs a proof format we do not understand.
	DecodeFailure

	// PeerMismatch means the proof names a different peer than the one that
	// sent it.
	PeerMismatch

	// BadSignature means the signature does not verify against the declared
	// public key.
	BadSignature
)

// String ...
func (r Reason) String() string {
	switch r {
	case Valid:
		return "valid"
	case DecodeFailure:
		return "decode_failure"
	case PeerMismatch:
		return "peer_mismatch"
	case BadSignature:
		return "bad_signature"
	default:
		return "unknown"
	}
}

// Disconnect reports whether a failure of this kind warrants closing every
// connection to the sender. Decode failures do not: they are expected while a
// network upgrades its proof format.
func (r Reason) Disconnect() bool {
	return r == PeerMismatch || r == BadSignature
}

// Result is the outcome of Verify. PublicKey is set only when Reason is Valid.
type Result struct {
	Reason    Reason
	PublicKey []byte
	Err       error
}

// Verified reports whether the proof was accepted.
func (r Result) Verified() bool {
	return r.Reason == Valid
}

// Verify decodes raw, checks that it was sent by the peer it names, and checks
// its signature, in that order.
func Verify(raw []byte, from peer.ID) Result {
	p, err := Unmarshal(raw)
	if err != nil {
		return Result{Reason: DecodeFailure, Err: err}
	}

	if !bytes.Equal(p.PeerID, []byte(from)) {
		return Result{
			Reason: PeerMismatch,
			Err:    fmt.Errorf("proof declares peer %s, sent by %s", p.Peer(), from),
		}
	}

	if !p.VerifySignature() {
		return Result{
			Reason: BadSignature,
			Err:    fmt.Errorf("invalid signature from %s", from),
		}
	}

	return Result{Reason: Valid, PublicKey: p.PublicKey}
}
