// Package proof implements the validator proof: a signed statement binding a
// validator's consensus public key to the peer ID of the node that holds it.
//
// A proof travels alone on a dedicated stream, framed as
//
//	uvarint(len(payload)) || payload
//
// where payload is at most MaxProofSize bytes. The payload itself is a
// versioned msgpack array, see ValidatorProof.
//
// Verification runs in three steps, each of which has its own failure Reason:
// the payload is decoded, the declared peer ID is compared with the sender and
// the signature is checked against the declared public key.
package proof
