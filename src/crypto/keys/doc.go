// Package keys implements the public key cryptography used by valproof nodes.
//
// A node owns two unrelated key-pairs. The validator key is a secp256k1 ECDSA
// key, the same curve used by Bitcoin and Ethereum, whose public half appears
// in the validator set. It signs the node's validator proof and nothing else.
// The node key is a libp2p identity key from which the node's peer ID is
// derived. A validator proof binds the first to the second.
//
// Signatures are DER encoded, which lets the proof format carry them as
// opaque, self-delimiting byte strings.
package keys
