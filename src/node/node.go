package node

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/mosaicnetworks/valproof/src/common"
	"github.com/mosaicnetworks/valproof/src/metrics"
	"github.com/mosaicnetworks/valproof/src/net"
	"github.com/mosaicnetworks/valproof/src/node/state"
	"github.com/mosaicnetworks/valproof/src/peers"
	"github.com/sirupsen/logrus"
)

// ErrNodeShutdown is returned by requests made after Shutdown.
var ErrNodeShutdown = errors.New("node shutdown")

// Node runs the proof protocol over a Transport. All session state is owned by
// the goroutine running Run; other goroutines talk to it through channels.
type Node struct {
	state.Manager

	conf   *Config
	logger *logrus.Entry

	trans     net.Transport
	store     *peers.Store
	behaviour *Behaviour
	metrics   *metrics.Recorder

	// outcomes of send and read tasks. Unbounded so that tasks never block and
	// no outcome is lost.
	outcomes *common.Queue[Event]

	controlCh   chan Event
	validatorCh chan *peers.PeerSet
	dumpCh      chan chan SessionState

	// proofCh and resultCh connect the loop to the verifier.
	proofCh  chan ProofReceived
	resultCh chan VerificationResult
	pending  []ProofReceived

	connectedPeers int64
	hasProof       int32

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownCh   chan struct{}
	loopDone     chan struct{}
	started      int32
	shutdownOnce sync.Once

	startedAt int64
}

// NewNode creates a Node. The store is written to by the node's event loop;
// recorder may be nil.
func NewNode(conf *Config,
	trans net.Transport,
	store *peers.Store,
	recorder *metrics.Recorder,
) *Node {
	capacity := conf.ChannelCapacity
	if capacity <= 0 {
		capacity = 32
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Node{
		conf:        conf,
		logger:      conf.Logger.WithField("this_id", trans.LocalPeer().String()),
		trans:       trans,
		store:       store,
		behaviour:   NewBehaviour(conf.EnableConsensus),
		metrics:     recorder,
		outcomes:    common.NewQueue[Event](),
		controlCh:   make(chan Event, capacity),
		validatorCh: make(chan *peers.PeerSet, capacity),
		dumpCh:      make(chan chan SessionState),
		proofCh:     make(chan ProofReceived, capacity),
		resultCh:    make(chan VerificationResult, capacity),
		ctx:         ctx,
		cancel:      cancel,
		shutdownCh:  make(chan struct{}),
		loopDone:    make(chan struct{}),
	}
}

// RunAsync calls Run in a separate goroutine.
func (n *Node) RunAsync() {
	n.logger.Debug("runasync")
	go n.Run()
}

// Run invokes the main loop of the node. It returns when the node shuts down,
// and does nothing if the loop was already started.
func (n *Node) Run() {
	if !atomic.CompareAndSwapInt32(&n.started, 0, 1) {
		return
	}
	defer close(n.loopDone)

	if n.GetState() == state.Shutdown {
		return
	}

	n.SetState(state.Running)
	atomic.StoreInt64(&n.startedAt, time.Now().UnixNano())

	n.logger.WithField("enable_consensus", n.conf.EnableConsensus).Debug("Run loop")

	n.GoFunc(n.verify)
	n.dispatch(n.behaviour.Start())

	for {
		// Proofs waiting for the verifier are only offered when there is one,
		// so a full proofCh never blocks the loop.
		var proofCh chan<- ProofReceived
		var next ProofReceived
		if len(n.pending) > 0 {
			proofCh = n.proofCh
			next = n.pending[0]
		}

		select {
		case ev := <-n.trans.Events():
			n.processConnEvent(ev)
		case id := <-n.trans.Identifications():
			n.processIdentification(id)
		case ev := <-n.outcomes.Out():
			n.processOutcome(ev)
		case ev := <-n.controlCh:
			n.handle(ev)
		case set := <-n.validatorCh:
			n.reclassify(set)
		case res := <-n.resultCh:
			n.processResult(res)
		case reply := <-n.dumpCh:
			reply <- n.behaviour.Snapshot()
		case proofCh <- next:
			n.pending[0] = ProofReceived{}
			n.pending = n.pending[1:]
		case <-n.shutdownCh:
			return
		}
	}
}

func (n *Node) processConnEvent(ev net.ConnEvent) {
	n.logger.WithFields(logrus.Fields{
		"peer": ev.Peer,
		"conn": ev.ConnID,
		"type": ev.Type,
	}).Debug("Connection event")

	switch ev.Type {
	case net.Established:
		n.handle(ConnectionEstablished{Peer: ev.Peer, ConnID: ev.ConnID})
	case net.Closed:
		n.handle(ConnectionClosed{Peer: ev.Peer, ConnID: ev.ConnID})
	}
}

func (n *Node) processIdentification(id net.Identification) {
	addrs := net.FilterReachable(id.ListenAddrs, n.trans.LocalAddrs())

	listenAddrs := make([]string, 0, len(addrs))
	for _, a := range addrs {
		listenAddrs = append(listenAddrs, a.String())
	}

	n.logger.WithFields(logrus.Fields{
		"peer":  id.Peer,
		"agent": id.AgentVersion,
		"addrs": listenAddrs,
	}).Debug("Peer identified")

	n.store.AddPeer(id.Peer, peers.Metadata{
		AgentVersion: id.AgentVersion,
		ListenAddrs:  listenAddrs,
		IdentifiedAt: time.Now(),
	})
}

// processOutcome handles the result of a task. A stream can be accepted before
// the loop has seen the Established event of its connection, because the two
// travel on different queues. Such outcomes are queued again until the event
// shows up; outcomes for peers the transport no longer knows are dropped by
// the Behaviour.
func (n *Node) processOutcome(ev Event) {
	switch ev := ev.(type) {
	case ProofSent:
		n.metrics.ProofSent()
		n.logger.WithField("peer", ev.Peer).Debug("Proof sent")
	case SendFailed:
		n.metrics.SendFailed()
	case ProofRead:
		if n.early(ev, ev.Peer) {
			return
		}
	case ReadFailed:
		if n.early(ev, ev.Peer) {
			return
		}
		n.metrics.ReadFailed()
	}

	n.handle(ev)
}

func (n *Node) early(ev Event, p peer.ID) bool {
	if n.behaviour.connected(p) || !n.trans.Connected(p) {
		return false
	}
	return n.outcomes.Push(ev)
}

func (n *Node) processResult(res VerificationResult) {
	fields := logrus.Fields{
		"peer":   res.Peer,
		"reason": res.Result.Reason,
	}

	switch {
	case res.Result.Verified():
		n.metrics.Verified()
		n.logger.WithFields(fields).Debug("Proof verified")
	case res.Result.Reason.Disconnect():
		n.metrics.Invalid(res.Result.Reason.String(), false)
		n.logger.WithFields(fields).WithError(res.Result.Err).Warn("Invalid proof")
	default:
		// Peers running another proof format stay connected and keep their
		// current classification.
		n.metrics.Invalid(res.Result.Reason.String(), true)
		n.logger.WithFields(fields).WithError(res.Result.Err).Info("Ignoring undecodable proof")
	}

	n.handle(res)
}

// handle feeds ev to the Behaviour and executes the resulting actions.
func (n *Node) handle(ev Event) {
	n.dispatch(n.behaviour.Handle(ev))

	atomic.StoreInt64(&n.connectedPeers, int64(n.behaviour.ConnectedPeers()))
	n.metrics.SetConnectedPeers(n.behaviour.ConnectedPeers())

	var hasProof int32
	if n.behaviour.HasProof() {
		hasProof = 1
	}
	atomic.StoreInt32(&n.hasProof, hasProof)
}

func (n *Node) dispatch(actions []Action) {
	for _, a := range actions {
		switch a := a.(type) {
		case SendProof:
			n.GoFunc(func() { n.sendProof(a) })
		case EmitProofReceived:
			n.metrics.ProofReceived()
			n.pending = append(n.pending, ProofReceived{Peer: a.Peer, Proof: a.Proof})
		case Disconnect:
			n.disconnect(a)
		case RecordProof:
			n.store.RecordVerifiedProof(a.Peer, a.PublicKey)
		case StartAcceptLoop:
			n.GoFunc(n.acceptLoop)
		}
	}
}

func (n *Node) disconnect(a Disconnect) {
	if a.Reason == ReasonDuplicateProof {
		n.metrics.DuplicateProof()
	}
	n.metrics.Disconnect(a.Reason)

	n.logger.WithFields(logrus.Fields{
		"peer":   a.Peer,
		"reason": a.Reason,
		"error":  a.Err,
	}).Warn("Disconnecting peer")

	n.GoFunc(func() {
		if err := n.trans.ClosePeer(a.Peer); err != nil {
			n.logger.WithField("peer", a.Peer).WithError(err).Error("ClosePeer")
		}
	})
}

func (n *Node) reclassify(set *peers.PeerSet) {
	changed := n.store.ReclassifyPeers(set)
	n.logger.WithFields(logrus.Fields{
		"validators": set.Len(),
		"changed":    changed,
	}).Debug("Validator set changed")
}

func (n *Node) post(ev Event) {
	select {
	case n.controlCh <- ev:
	case <-n.shutdownCh:
	}
}

// SetOurProof makes this node announce proof to its peers. The proof is sent
// to every connected peer that has not received one in the current connection
// epoch, and to every peer that connects afterwards.
func (n *Node) SetOurProof(proof []byte) {
	n.post(SetOurProof{Proof: append([]byte(nil), proof...)})
}

// ClearOurProof stops future sends of our proof.
func (n *Node) ClearOurProof() {
	n.post(ClearOurProof{})
}

// SetValidatorSet reclassifies every known peer against set.
func (n *Node) SetValidatorSet(set *peers.PeerSet) {
	select {
	case n.validatorCh <- set:
	case <-n.shutdownCh:
	}
}

// DumpState returns a copy of the session state, as seen by the event loop.
func (n *Node) DumpState(ctx context.Context) (SessionState, error) {
	reply := make(chan SessionState, 1)

	select {
	case n.dumpCh <- reply:
	case <-ctx.Done():
		return SessionState{}, ctx.Err()
	case <-n.shutdownCh:
		return SessionState{}, ErrNodeShutdown
	}

	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return SessionState{}, ctx.Err()
	}
}

// Shutdown stops the event loop, waits for every task, and closes the
// transport.
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() {
		n.logger.Debug("Shutdown")

		n.SetState(state.Shutdown)

		n.cancel()
		close(n.shutdownCh)

		if atomic.LoadInt32(&n.started) == 1 {
			<-n.loopDone
		}

		n.WaitRoutines()

		// The transport is closed only once all tasks are finished, otherwise
		// they would race with it.
		n.trans.Close()

		n.outcomes.Close()
	})
}

// Store returns the peer classification store.
func (n *Node) Store() *peers.Store {
	return n.store
}

// Transport returns the node's transport.
func (n *Node) Transport() net.Transport {
	return n.trans
}

// GetStats returns counters about the proof protocol, for display.
func (n *Node) GetStats() map[string]string {
	toString := func(i uint64) string {
		return strconv.FormatUint(i, 10)
	}

	m := n.metrics.Stats()
	snap := n.store.Snapshot()

	var uptime time.Duration
	if startedAt := atomic.LoadInt64(&n.startedAt); startedAt != 0 && n.GetState() == state.Running {
		uptime = time.Since(time.Unix(0, startedAt))
	}

	s := map[string]string{
		"id":                 n.trans.LocalPeer().String(),
		"moniker":            n.conf.Moniker,
		"state":              n.GetState().String(),
		"enable_consensus":   strconv.FormatBool(n.conf.EnableConsensus),
		"validator":          strconv.FormatBool(atomic.LoadInt32(&n.hasProof) == 1),
		"connected_peers":    strconv.FormatInt(atomic.LoadInt64(&n.connectedPeers), 10),
		"known_peers":        strconv.Itoa(len(snap.Records)),
		"validator_peers":    strconv.Itoa(snap.Validators),
		"pending_keys":       strconv.Itoa(snap.Pending),
		"validator_set_size": strconv.Itoa(n.store.ValidatorSet().Len()),
		"proofs_sent":        toString(m.Sent),
		"send_failures":      toString(m.SendFailures),
		"proofs_received":    toString(m.Received),
		"duplicate_proofs":   toString(m.Duplicates),
		"read_failures":      toString(m.ReadFailures),
		"verified_proofs":    toString(m.Verified),
		"invalid_proofs":     toString(m.Invalid),
		"decode_failures":    toString(m.DecodeFailures),
		"disconnects":        toString(m.Disconnects),
		"uptime":             uptime.Round(time.Second).String(),
	}
	return s
}
