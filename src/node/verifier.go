package node

import (
	"github.com/mosaicnetworks/valproof/src/proof"
)

// verify runs in its own goroutine. It decodes and checks the proofs emitted
// by the event loop and sends the verdicts back. Both channels are bounded: a
// slow loop makes results queue up here rather than be dropped.
func (n *Node) verify() {
	for {
		select {
		case p := <-n.proofCh:
			res := proof.Verify(p.Proof, p.Peer)
			select {
			case n.resultCh <- VerificationResult{Peer: p.Peer, Result: res}:
			case <-n.shutdownCh:
				return
			}
		case <-n.shutdownCh:
			return
		}
	}
}
