// Package net abstracts the networking layer used by valproof nodes.
//
// The node needs very little from the network: notifications when connections
// to peers open and close, the identification of peers once it completes, and
// the ability to open and accept single-use streams under the proof protocol
// name. The Transport interface captures exactly that. Dialing, discovery,
// gossip and NAT traversal are left to the underlying stack.
//
// There are two implementations:
//
// - LibP2P: the production transport, built on a libp2p host. Protocol names
// are negotiated with multistream-select, so a peer that does not speak our
// protocol simply fails stream negotiation. It also feeds peer classification
// back into the libp2p connection manager.
//
// - Inmem: an in-memory transport used for testing, where connections are
// created and closed explicitly through an InmemNetwork and streams are
// synchronous pipes.
//
// FilterReachable removes addresses of a peer that we could not dial from
// any of our own addresses before they are recorded.
package net
