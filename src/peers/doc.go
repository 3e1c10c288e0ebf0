// Package peers keeps track of who is who on the network.
//
// A validator set is the list of consensus public keys currently authorized to
// take part in consensus. It is managed outside this node and loaded from a
// validators.json file or pushed in at runtime. Entries are identified by their
// public key and an optional moniker, a non-unique user-friendly name.
//
// Network peers are identified by their libp2p peer ID, which says nothing
// about their consensus role. The Store joins the two: when a peer proves that
// it holds a validator key, the key is recorded against its peer ID and the
// peer is classified as a Validator for as long as the key remains in the
// validator set. Everyone else is a FullNode.
//
// Records are created when a peer's identification completes. A proof can be
// verified before that happens, in which case the key waits in a pending buffer
// until the record exists.
package peers
