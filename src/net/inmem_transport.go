package net

import (
	"context"
	"fmt"
	gonet "net"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/mosaicnetworks/valproof/src/common"
	ma "github.com/multiformats/go-multiaddr"
)

// InmemAgentVersion is the agent reported in identifications of in-memory
// peers.
const InmemAgentVersion = "valproof/inmem"

// InmemNetwork routes connections and streams between InmemTransports. It
// allows the proof protocol to be tested in-memory without going over a
// network.
type InmemNetwork struct {
	sync.Mutex
	transports map[peer.ID]*InmemTransport
	conns      map[string]inmemConn
	nextConn   uint64
}

type inmemConn struct {
	id   string
	a, b peer.ID
}

func (c inmemConn) other(p peer.ID) (peer.ID, bool) {
	switch p {
	case c.a:
		return c.b, true
	case c.b:
		return c.a, true
	}
	return "", false
}

// NewInmemNetwork creates an empty network.
func NewInmemNetwork() *InmemNetwork {
	return &InmemNetwork{
		transports: make(map[peer.ID]*InmemTransport),
		conns:      make(map[string]inmemConn),
	}
}

// NewTransport attaches a new transport with the given identity. Streams can
// only be opened between transports that use the same protocol name.
func (n *InmemNetwork) NewTransport(id peer.ID, protocol string) *InmemTransport {
	trans := &InmemTransport{
		network:    n,
		id:         id,
		protocol:   protocol,
		events:     common.NewQueue[ConnEvent](),
		idents:     common.NewQueue[Identification](),
		incoming:   make(chan Stream, 16),
		shutdownCh: make(chan struct{}),
	}

	n.Lock()
	n.transports[id] = trans
	n.Unlock()

	return trans
}

// Connect opens a new connection between a and b and returns its ID. Both
// sides receive an Established event, and an Identification of the other side
// if this is the first connection between them.
func (n *InmemNetwork) Connect(a, b peer.ID) (string, error) {
	n.Lock()
	defer n.Unlock()

	ta, ok := n.transports[a]
	if !ok {
		return "", fmt.Errorf("unknown peer %s", a)
	}
	tb, ok := n.transports[b]
	if !ok {
		return "", fmt.Errorf("unknown peer %s", b)
	}
	if a == b {
		return "", fmt.Errorf("cannot connect %s to itself", a)
	}

	first := !n.connectedLocked(a, b)

	n.nextConn++
	conn := inmemConn{id: fmt.Sprintf("inmem-%d", n.nextConn), a: a, b: b}
	n.conns[conn.id] = conn

	ta.events.Push(ConnEvent{Type: Established, Peer: b, ConnID: conn.id})
	tb.events.Push(ConnEvent{Type: Established, Peer: a, ConnID: conn.id})

	if first {
		ta.idents.Push(Identification{Peer: b, AgentVersion: InmemAgentVersion})
		tb.idents.Push(Identification{Peer: a, AgentVersion: InmemAgentVersion})
	}

	return conn.id, nil
}

// CloseConn closes a single connection.
func (n *InmemNetwork) CloseConn(connID string) error {
	n.Lock()
	defer n.Unlock()

	conn, ok := n.conns[connID]
	if !ok {
		return fmt.Errorf("unknown connection %s", connID)
	}
	n.closeLocked(conn)
	return nil
}

// Connected reports whether a and b share at least one connection.
func (n *InmemNetwork) Connected(a, b peer.ID) bool {
	n.Lock()
	defer n.Unlock()
	return n.connectedLocked(a, b)
}

func (n *InmemNetwork) connectedLocked(a, b peer.ID) bool {
	for _, c := range n.conns {
		if o, ok := c.other(a); ok && o == b {
			return true
		}
	}
	return false
}

// closePeers closes every connection between a and b, or every connection of
// a if b is empty.
func (n *InmemNetwork) closePeers(a, b peer.ID) {
	n.Lock()
	defer n.Unlock()

	for _, c := range n.conns {
		o, ok := c.other(a)
		if !ok || (b != "" && o != b) {
			continue
		}
		n.closeLocked(c)
	}
}

func (n *InmemNetwork) closeLocked(c inmemConn) {
	delete(n.conns, c.id)
	if t, ok := n.transports[c.a]; ok {
		t.events.Push(ConnEvent{Type: Closed, Peer: c.b, ConnID: c.id})
	}
	if t, ok := n.transports[c.b]; ok {
		t.events.Push(ConnEvent{Type: Closed, Peer: c.a, ConnID: c.id})
	}
}

func (n *InmemNetwork) transport(p peer.ID) (*InmemTransport, bool) {
	n.Lock()
	defer n.Unlock()
	t, ok := n.transports[p]
	return t, ok
}

func (n *InmemNetwork) remove(p peer.ID) {
	n.closePeers(p, "")

	n.Lock()
	delete(n.transports, p)
	n.Unlock()
}

// InmemTransport implements the Transport interface on top of an
// InmemNetwork. Streams are synchronous in-memory pipes.
type InmemTransport struct {
	sync.RWMutex
	network      *InmemNetwork
	id           peer.ID
	protocol     string
	listening    bool
	events       *common.Queue[ConnEvent]
	idents       *common.Queue[Identification]
	incoming     chan Stream
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// LocalPeer implements the Transport interface.
func (i *InmemTransport) LocalPeer() peer.ID {
	return i.id
}

// LocalAddrs implements the Transport interface. In-memory transports have no
// addresses.
func (i *InmemTransport) LocalAddrs() []ma.Multiaddr {
	return nil
}

// Events implements the Transport interface.
func (i *InmemTransport) Events() <-chan ConnEvent {
	return i.events.Out()
}

// Identifications implements the Transport interface.
func (i *InmemTransport) Identifications() <-chan Identification {
	return i.idents.Out()
}

// Listen implements the Transport interface.
func (i *InmemTransport) Listen() error {
	i.Lock()
	defer i.Unlock()
	i.listening = true
	return nil
}

func (i *InmemTransport) accepts(protocol string) bool {
	i.RLock()
	defer i.RUnlock()
	return i.listening && i.protocol == protocol
}

// AcceptStream implements the Transport interface.
func (i *InmemTransport) AcceptStream(ctx context.Context) (Stream, error) {
	select {
	case s := <-i.incoming:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-i.shutdownCh:
		return nil, ErrTransportShutdown
	}
}

// Connected implements the Transport interface.
func (i *InmemTransport) Connected(p peer.ID) bool {
	return i.network.Connected(i.id, p)
}

// OpenStream implements the Transport interface.
func (i *InmemTransport) OpenStream(ctx context.Context, p peer.ID) (Stream, error) {
	select {
	case <-i.shutdownCh:
		return nil, ErrTransportShutdown
	default:
	}

	if !i.Connected(p) {
		return nil, ErrNotConnected
	}

	remote, ok := i.network.transport(p)
	if !ok {
		return nil, ErrNotConnected
	}

	if !remote.accepts(i.protocol) {
		return nil, fmt.Errorf("%w: %s", ErrProtocolNotSupported, i.protocol)
	}

	local, other := gonet.Pipe()

	select {
	case remote.incoming <- &inmemStream{Conn: other, remote: i.id}:
		return &inmemStream{Conn: local, remote: p}, nil
	case <-ctx.Done():
		local.Close()
		other.Close()
		return nil, ctx.Err()
	case <-remote.shutdownCh:
		local.Close()
		other.Close()
		return nil, ErrNotConnected
	}
}

// ClosePeer implements the Transport interface.
func (i *InmemTransport) ClosePeer(p peer.ID) error {
	i.network.closePeers(i.id, p)
	return nil
}

// Close implements the Transport interface. Every connection of this
// transport is closed.
func (i *InmemTransport) Close() error {
	i.shutdownOnce.Do(func() {
		close(i.shutdownCh)
		i.network.remove(i.id)
		i.events.Close()
		i.idents.Close()
	})
	return nil
}

type inmemStream struct {
	gonet.Conn
	remote peer.ID
}

func (s *inmemStream) RemotePeer() peer.ID {
	return s.remote
}

func (s *inmemStream) Reset() error {
	return s.Conn.Close()
}
