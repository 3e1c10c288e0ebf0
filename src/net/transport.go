package net

import (
	"context"
	"errors"
	"io"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

var (
	// ErrTransportShutdown is returned by blocking calls once the transport is
	// closed.
	ErrTransportShutdown = errors.New("transport shutdown")

	// ErrNotConnected is returned when opening a stream to a peer we have no
	// connection to.
	ErrNotConnected = errors.New("peer not connected")

	// ErrProtocolNotSupported is returned when the remote peer does not speak
	// the proof protocol.
	ErrProtocolNotSupported = errors.New("protocol not supported")
)

// ConnEventType distinguishes ConnEvents.
type ConnEventType uint8

const (
	// Established is emitted for every new connection, including additional
	// connections to an already connected peer.
	Established ConnEventType = iota
	// Closed is emitted for every closed connection.
	Closed
)

// String ...
func (t ConnEventType) String() string {
	switch t {
	case Established:
		return "Established"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ConnEvent reports a change of one connection. ConnID is unique per
// connection for the lifetime of the transport.
type ConnEvent struct {
	Type   ConnEventType
	Peer   peer.ID
	ConnID string
}

// Identification is emitted when the networking layer has learned a peer's
// agent and listen addresses.
type Identification struct {
	Peer         peer.ID
	AgentVersion string
	ListenAddrs  []ma.Multiaddr
}

// Stream is a single-use, bidirectional byte stream to one peer.
type Stream interface {
	io.ReadWriteCloser

	// RemotePeer is the peer at the other end.
	RemotePeer() peer.ID

	// Reset aborts the stream in both directions.
	Reset() error
}

// Transport is what the node needs from the networking layer. Implementations
// must never block when delivering Events or Identifications.
type Transport interface {
	// LocalPeer returns our own peer ID.
	LocalPeer() peer.ID

	// LocalAddrs returns the addresses we listen on.
	LocalAddrs() []ma.Multiaddr

	// Events returns the stream of connection changes.
	Events() <-chan ConnEvent

	// Identifications returns the stream of completed peer identifications.
	Identifications() <-chan Identification

	// Listen registers the proof protocol so that remote peers can open
	// streams to us. Until it is called, inbound streams are refused.
	Listen() error

	// AcceptStream blocks until a remote peer opens a proof stream.
	AcceptStream(ctx context.Context) (Stream, error)

	// Connected reports whether we have at least one open connection to p.
	// The Established event of a connection is always emitted before any
	// stream on that connection is accepted.
	Connected(p peer.ID) bool

	// OpenStream opens a proof stream to a connected peer.
	OpenStream(ctx context.Context, p peer.ID) (Stream, error)

	// ClosePeer closes every connection to p.
	ClosePeer(p peer.ID) error

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}
