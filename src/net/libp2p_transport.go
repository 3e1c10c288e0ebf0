package net

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	p2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/mosaicnetworks/valproof/src/common"
	"github.com/mosaicnetworks/valproof/src/peers"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"
)

const (
	validatorTag       = "validator"
	validatorTagWeight = 100
	bootstrapTag       = "bootstrap"
	bootstrapTagWeight = 10
)

// LibP2PConfig holds the options of a LibP2PTransport that owns its host.
type LibP2PConfig struct {
	Key         p2pcrypto.PrivKey
	ListenAddrs []string
	Protocol    string
	UserAgent   string
	ConnLow     int
	ConnHigh    int
	GracePeriod time.Duration
}

// LibP2PTransport implements the Transport interface over a libp2p host.
// Connection notifications and identify events are turned into Events and
// Identifications; proof streams are negotiated under the configured protocol
// name.
//
// It also implements peers.Observer: validators are protected from connection
// pruning and tagged with a high weight, which the connection manager uses to
// rank peers.
type LibP2PTransport struct {
	host     host.Host
	ownsHost bool
	protocol protocol.ID

	events   *common.Queue[ConnEvent]
	idents   *common.Queue[Identification]
	incoming chan Stream

	notifiee *network.NotifyBundle
	sub      event.Subscription

	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	logger *logrus.Entry
}

// NewLibP2PTransport creates a libp2p host listening on conf.ListenAddrs and
// wraps it.
func NewLibP2PTransport(conf LibP2PConfig, logger *logrus.Entry) (*LibP2PTransport, error) {
	cm, err := connmgr.NewConnManager(conf.ConnLow, conf.ConnHigh, connmgr.WithGracePeriod(conf.GracePeriod))
	if err != nil {
		return nil, fmt.Errorf("creating connection manager: %w", err)
	}

	opts := []libp2p.Option{
		libp2p.Identity(conf.Key),
		libp2p.ListenAddrStrings(conf.ListenAddrs...),
		libp2p.ConnectionManager(cm),
	}
	if conf.UserAgent != "" {
		opts = append(opts, libp2p.UserAgent(conf.UserAgent))
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating libp2p host: %w", err)
	}

	t, err := wrapHost(h, conf.Protocol, logger)
	if err != nil {
		h.Close()
		return nil, err
	}
	t.ownsHost = true

	return t, nil
}

// WrapHost builds a transport over an existing host. Closing the transport
// does not close the host.
func WrapHost(h host.Host, proto string, logger *logrus.Entry) (*LibP2PTransport, error) {
	return wrapHost(h, proto, logger)
}

func wrapHost(h host.Host, proto string, logger *logrus.Entry) (*LibP2PTransport, error) {
	t := &LibP2PTransport{
		host:       h,
		protocol:   protocol.ID(proto),
		events:     common.NewQueue[ConnEvent](),
		idents:     common.NewQueue[Identification](),
		incoming:   make(chan Stream, 16),
		shutdownCh: make(chan struct{}),
		logger:     logger,
	}

	sub, err := h.EventBus().Subscribe(new(event.EvtPeerIdentificationCompleted))
	if err != nil {
		return nil, fmt.Errorf("subscribing to identify events: %w", err)
	}
	t.sub = sub

	t.notifiee = &network.NotifyBundle{
		ConnectedF: func(_ network.Network, c network.Conn) {
			t.events.Push(ConnEvent{Type: Established, Peer: c.RemotePeer(), ConnID: c.ID()})
		},
		DisconnectedF: func(_ network.Network, c network.Conn) {
			t.events.Push(ConnEvent{Type: Closed, Peer: c.RemotePeer(), ConnID: c.ID()})
		},
	}
	h.Network().Notify(t.notifiee)

	// Connections that predate the notifiee. Duplicates are harmless because
	// connections are tracked by ID.
	for _, c := range h.Network().Conns() {
		t.events.Push(ConnEvent{Type: Established, Peer: c.RemotePeer(), ConnID: c.ID()})
	}

	go t.forwardIdentifications()

	t.logger.WithFields(logrus.Fields{
		"peer":     h.ID(),
		"addrs":    h.Addrs(),
		"protocol": t.protocol,
	}).Debug("libp2p transport ready")

	return t, nil
}

func (t *LibP2PTransport) forwardIdentifications() {
	for e := range t.sub.Out() {
		evt, ok := e.(event.EvtPeerIdentificationCompleted)
		if !ok {
			continue
		}
		t.idents.Push(Identification{
			Peer:         evt.Peer,
			AgentVersion: evt.AgentVersion,
			ListenAddrs:  evt.ListenAddrs,
		})
	}
}

// Host returns the underlying libp2p host.
func (t *LibP2PTransport) Host() host.Host {
	return t.host
}

// LocalPeer implements the Transport interface.
func (t *LibP2PTransport) LocalPeer() peer.ID {
	return t.host.ID()
}

// LocalAddrs implements the Transport interface.
func (t *LibP2PTransport) LocalAddrs() []ma.Multiaddr {
	return t.host.Addrs()
}

// Events implements the Transport interface.
func (t *LibP2PTransport) Events() <-chan ConnEvent {
	return t.events.Out()
}

// Identifications implements the Transport interface.
func (t *LibP2PTransport) Identifications() <-chan Identification {
	return t.idents.Out()
}

// Listen implements the Transport interface.
func (t *LibP2PTransport) Listen() error {
	t.host.SetStreamHandler(t.protocol, t.handleStream)
	return nil
}

func (t *LibP2PTransport) handleStream(s network.Stream) {
	select {
	case t.incoming <- &libp2pStream{Stream: s}:
	case <-t.shutdownCh:
		s.Reset()
	}
}

// AcceptStream implements the Transport interface.
func (t *LibP2PTransport) AcceptStream(ctx context.Context) (Stream, error) {
	select {
	case s := <-t.incoming:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.shutdownCh:
		return nil, ErrTransportShutdown
	}
}

// Connected implements the Transport interface.
func (t *LibP2PTransport) Connected(p peer.ID) bool {
	return t.host.Network().Connectedness(p) == network.Connected
}

// OpenStream implements the Transport interface. It never dials: the peer must
// already be connected.
func (t *LibP2PTransport) OpenStream(ctx context.Context, p peer.ID) (Stream, error) {
	select {
	case <-t.shutdownCh:
		return nil, ErrTransportShutdown
	default:
	}

	if !t.Connected(p) {
		return nil, ErrNotConnected
	}

	s, err := t.host.NewStream(network.WithNoDial(ctx, "proof"), p, t.protocol)
	if err != nil {
		return nil, fmt.Errorf("opening %s stream to %s: %w", t.protocol, p, err)
	}

	return &libp2pStream{Stream: s}, nil
}

// ClosePeer implements the Transport interface.
func (t *LibP2PTransport) ClosePeer(p peer.ID) error {
	return t.host.Network().ClosePeer(p)
}

// Connect dials a peer given its full multiaddress (including /p2p/<id>) and
// tags it as a bootstrap peer.
func (t *LibP2PTransport) Connect(ctx context.Context, addr string) error {
	maddr, err := ma.NewMultiaddr(addr)
	if err != nil {
		return fmt.Errorf("invalid address %s: %w", addr, err)
	}

	info, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return fmt.Errorf("invalid peer address %s: %w", addr, err)
	}

	if err := t.host.Connect(ctx, *info); err != nil {
		return err
	}

	t.host.ConnManager().TagPeer(info.ID, bootstrapTag, bootstrapTagWeight)

	return nil
}

// ClassificationChanged implements peers.Observer.
func (t *LibP2PTransport) ClassificationChanged(rec peers.Record) {
	cm := t.host.ConnManager()

	if rec.Classification == peers.Validator {
		cm.Protect(rec.PeerID, validatorTag)
		cm.TagPeer(rec.PeerID, validatorTag, validatorTagWeight)
		return
	}

	cm.Unprotect(rec.PeerID, validatorTag)
	cm.UntagPeer(rec.PeerID, validatorTag)
}

// Close implements the Transport interface.
func (t *LibP2PTransport) Close() error {
	var err error
	t.shutdownOnce.Do(func() {
		close(t.shutdownCh)
		t.host.RemoveStreamHandler(t.protocol)
		t.host.Network().StopNotify(t.notifiee)
		t.sub.Close()
		t.events.Close()
		t.idents.Close()
		if t.ownsHost {
			err = t.host.Close()
		}
	})
	return err
}

type libp2pStream struct {
	network.Stream
}

func (s *libp2pStream) RemotePeer() peer.ID {
	return s.Conn().RemotePeer()
}
