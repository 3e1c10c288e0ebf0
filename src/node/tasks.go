package node

import (
	"context"
	"errors"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/mosaicnetworks/valproof/src/net"
	"github.com/mosaicnetworks/valproof/src/proof"
	"github.com/sirupsen/logrus"
)

// acceptLoop registers the proof protocol and reads every inbound stream in
// its own goroutine. It runs until the node shuts down.
func (n *Node) acceptLoop() {
	if err := n.trans.Listen(); err != nil {
		n.logger.WithError(err).Error("Registering proof protocol")
		return
	}

	n.logger.Debug("Accepting proof streams")

	for {
		s, err := n.trans.AcceptStream(n.ctx)
		if err != nil {
			if n.ctx.Err() != nil || errors.Is(err, net.ErrTransportShutdown) {
				return
			}
			n.logger.WithError(err).Error("AcceptStream")
			continue
		}

		n.GoFunc(func() { n.readProof(s) })
	}
}

// readProof reads one frame from s and reports exactly one outcome.
func (n *Node) readProof(s net.Stream) {
	from := s.RemotePeer()

	ctx, cancel := context.WithTimeout(n.ctx, n.conf.StreamTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { s.Reset() })
	defer stop()

	payload, err := proof.ReadFrame(s)
	if err != nil {
		s.Reset()
		n.outcomes.Push(ReadFailed{Peer: from, Err: err})
		return
	}
	s.Close()

	n.outcomes.Push(ProofRead{Peer: from, Proof: payload})
}

// sendProof writes a proof to one peer and reports exactly one outcome.
func (n *Node) sendProof(a SendProof) {
	ctx, cancel := context.WithTimeout(n.ctx, n.conf.StreamTimeout)
	defer cancel()

	if err := n.writeProof(ctx, a.Peer, a.Proof); err != nil {
		n.logger.WithFields(logrus.Fields{
			"peer":  a.Peer,
			"error": err,
		}).Debug("Sending proof")
		n.outcomes.Push(SendFailed{Peer: a.Peer, Attempt: a.Attempt, Err: err})
		return
	}

	n.outcomes.Push(ProofSent{Peer: a.Peer, Attempt: a.Attempt})
}

func (n *Node) writeProof(ctx context.Context, p peer.ID, payload []byte) error {
	s, err := n.trans.OpenStream(ctx, p)
	if err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() { s.Reset() })
	defer stop()

	if err := proof.WriteFrame(s, payload); err != nil {
		s.Reset()
		return err
	}

	return s.Close()
}
