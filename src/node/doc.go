// Package node implements the reactive component of a valproof node.
//
// A validator announces itself to every peer it connects to by sending a
// ValidatorProof, a signature by its consensus key over its network identity.
// The receiving side verifies the proof and classifies the sender as a
// Validator or a FullNode, which the connection manager and the gossip layer
// use to prioritise peers.
//
// Session
//
// The Behaviour is a pure state machine. It tracks the open connections of
// every peer, the peers we sent our proof to, and the peers we received a proof
// from. Its dedup sets are tied to the connection epoch of a peer: they are
// cleared when the last connection to the peer closes, so a peer that
// reconnects exchanges proofs again. Within an epoch, a proof is sent at most
// once and accepted at most once. A second proof from the same peer is treated
// as spam and the peer is disconnected.
//
// Tasks
//
// The Node owns the Behaviour and runs a single event loop. Sending a proof and
// reading inbound streams happen in short-lived goroutines which report their
// outcome back to the loop through an unbounded queue, so that no outcome is
// ever dropped. Received proofs are handed to a verifier goroutine over a
// bounded channel, and verification results come back over another one.
//
// Failure policy
//
// Framing errors on inbound streams, duplicate proofs, forged peer identities
// and bad signatures disconnect the peer. A proof that cannot be decoded is
// logged and ignored, because it is what an older or newer node sends while the
// network upgrades its proof format. A protocol name mismatch never reaches this
// package: the stream simply fails to open.
package node
