package node

import (
	"sort"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Behaviour holds the session state of the proof protocol. It does no I/O:
// Handle turns one Event into the Actions the Node must execute. It is not safe
// for concurrent use and is only ever touched by the Node's event loop.
type Behaviour struct {
	enabled bool

	ourProof []byte

	activeConnections map[peer.ID]map[string]struct{}
	sentTo            map[peer.ID]uint64
	receivedFrom      map[peer.ID]struct{}

	acceptLoopStarted bool
	attempts          uint64
}

// NewBehaviour creates a Behaviour. A disabled Behaviour tracks connections
// but never sends proofs nor starts the accept loop; this is how nodes that do
// not take part in consensus run.
func NewBehaviour(enabled bool) *Behaviour {
	return &Behaviour{
		enabled:           enabled,
		activeConnections: make(map[peer.ID]map[string]struct{}),
		sentTo:            make(map[peer.ID]uint64),
		receivedFrom:      make(map[peer.ID]struct{}),
	}
}

// Start returns StartAcceptLoop the first time it is called on an enabled
// Behaviour, and nothing afterwards.
func (b *Behaviour) Start() []Action {
	if !b.enabled || b.acceptLoopStarted {
		return nil
	}
	b.acceptLoopStarted = true
	return []Action{StartAcceptLoop{}}
}

// Handle applies ev to the session state.
func (b *Behaviour) Handle(ev Event) []Action {
	switch ev := ev.(type) {
	case ConnectionEstablished:
		return b.onConnectionEstablished(ev)
	case ConnectionClosed:
		b.onConnectionClosed(ev)
	case SetOurProof:
		return b.onSetOurProof(ev)
	case ClearOurProof:
		b.ourProof = nil
	case ProofSent:
	case SendFailed:
		b.onSendFailed(ev)
	case ProofRead:
		return b.onProofRead(ev)
	case ReadFailed:
		return b.onReadFailed(ev)
	case VerificationResult:
		return b.onVerificationResult(ev)
	}
	return nil
}

func (b *Behaviour) onConnectionEstablished(ev ConnectionEstablished) []Action {
	conns, ok := b.activeConnections[ev.Peer]
	if !ok {
		conns = make(map[string]struct{})
		b.activeConnections[ev.Peer] = conns
	}
	first := len(conns) == 0
	conns[ev.ConnID] = struct{}{}

	if !first {
		return nil
	}
	return b.trySend(ev.Peer)
}

func (b *Behaviour) onConnectionClosed(ev ConnectionClosed) {
	conns, ok := b.activeConnections[ev.Peer]
	if !ok {
		return
	}
	delete(conns, ev.ConnID)
	if len(conns) > 0 {
		return
	}

	delete(b.activeConnections, ev.Peer)
	delete(b.sentTo, ev.Peer)
	delete(b.receivedFrom, ev.Peer)
}

func (b *Behaviour) onSetOurProof(ev SetOurProof) []Action {
	if len(ev.Proof) == 0 {
		b.ourProof = nil
		return nil
	}
	b.ourProof = append([]byte(nil), ev.Proof...)

	var actions []Action
	for _, p := range b.connectedPeers() {
		actions = append(actions, b.trySend(p)...)
	}
	return actions
}

// trySend marks p as sent before the task runs, so that connection events
// arriving while the task is in flight do not start a second one.
func (b *Behaviour) trySend(p peer.ID) []Action {
	if !b.enabled || b.ourProof == nil {
		return nil
	}
	if _, ok := b.sentTo[p]; ok {
		return nil
	}

	b.attempts++
	b.sentTo[p] = b.attempts

	return []Action{SendProof{
		Peer:    p,
		Proof:   append([]byte(nil), b.ourProof...),
		Attempt: b.attempts,
	}}
}

func (b *Behaviour) onSendFailed(ev SendFailed) {
	if attempt, ok := b.sentTo[ev.Peer]; ok && attempt == ev.Attempt {
		delete(b.sentTo, ev.Peer)
	}
}

func (b *Behaviour) onProofRead(ev ProofRead) []Action {
	if !b.connected(ev.Peer) {
		return nil
	}

	if _, ok := b.receivedFrom[ev.Peer]; ok {
		return []Action{Disconnect{Peer: ev.Peer, Reason: ReasonDuplicateProof}}
	}
	b.receivedFrom[ev.Peer] = struct{}{}

	return []Action{EmitProofReceived{Peer: ev.Peer, Proof: ev.Proof}}
}

func (b *Behaviour) onReadFailed(ev ReadFailed) []Action {
	if !b.connected(ev.Peer) {
		return nil
	}
	return []Action{Disconnect{Peer: ev.Peer, Reason: ReasonReadFailure, Err: ev.Err}}
}

// A verified key is recorded even if the peer has left in the meantime:
// classification outlives the session.
func (b *Behaviour) onVerificationResult(ev VerificationResult) []Action {
	res := ev.Result
	if res.Verified() {
		return []Action{RecordProof{Peer: ev.Peer, PublicKey: res.PublicKey}}
	}
	if res.Reason.Disconnect() && b.connected(ev.Peer) {
		return []Action{Disconnect{Peer: ev.Peer, Reason: res.Reason.String(), Err: res.Err}}
	}
	return nil
}

func (b *Behaviour) connected(p peer.ID) bool {
	_, ok := b.activeConnections[p]
	return ok
}

func (b *Behaviour) connectedPeers() []peer.ID {
	ps := make([]peer.ID, 0, len(b.activeConnections))
	for p := range b.activeConnections {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
	return ps
}

// ConnectedPeers returns the number of peers with at least one connection.
func (b *Behaviour) ConnectedPeers() int {
	return len(b.activeConnections)
}

// HasProof reports whether we currently hold a proof to send.
func (b *Behaviour) HasProof() bool {
	return b.ourProof != nil
}

// PeerSession is the session state of one connected peer.
type PeerSession struct {
	Peer        string
	Connections int
	Sent        bool
	Received    bool
}

// SessionState is a copy of the Behaviour's state.
type SessionState struct {
	Enabled           bool
	HasProof          bool
	AcceptLoopStarted bool
	Peers             []PeerSession
}

// Snapshot copies the session state, with peers sorted by ID.
func (b *Behaviour) Snapshot() SessionState {
	s := SessionState{
		Enabled:           b.enabled,
		HasProof:          b.ourProof != nil,
		AcceptLoopStarted: b.acceptLoopStarted,
		Peers:             make([]PeerSession, 0, len(b.activeConnections)),
	}
	for _, p := range b.connectedPeers() {
		_, sent := b.sentTo[p]
		_, received := b.receivedFrom[p]
		s.Peers = append(s.Peers, PeerSession{
			Peer:        p.String(),
			Connections: len(b.activeConnections[p]),
			Sent:        sent,
			Received:    received,
		})
	}
	return s
}
