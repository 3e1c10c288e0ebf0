package node

import (
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/mosaicnetworks/valproof/src/proof"
)

// Event is an input of the Behaviour. The set of events is closed: every
// implementation lives in this file and is handled by exactly one branch of
// Behaviour.Handle.
type Event interface {
	isEvent()
}

// ConnectionEstablished reports a new connection, which may not be the first
// one to Peer.
type ConnectionEstablished struct {
	Peer   peer.ID
	ConnID string
}

// ConnectionClosed reports that one connection to Peer closed.
type ConnectionClosed struct {
	Peer   peer.ID
	ConnID string
}

// SetOurProof makes us a validator: Proof is sent to every connected peer that
// has not received it in the current epoch, and to every peer that connects
// from now on.
type SetOurProof struct {
	Proof []byte
}

// ClearOurProof stops future sends. Proofs already sent are not retracted.
type ClearOurProof struct{}

// ProofSent is the outcome of a successful send task.
type ProofSent struct {
	Peer    peer.ID
	Attempt uint64
}

// SendFailed is the outcome of a failed send task.
type SendFailed struct {
	Peer    peer.ID
	Attempt uint64
	Err     error
}

// ProofRead is the outcome of an inbound stream that carried a well-framed
// payload.
type ProofRead struct {
	Peer  peer.ID
	Proof []byte
}

// ReadFailed is the outcome of an inbound stream that could not be read: an
// oversized frame, a malformed length prefix, or an abrupt close.
type ReadFailed struct {
	Peer peer.ID
	Err  error
}

// VerificationResult is the verdict of the verifier on a proof we emitted with
// EmitProofReceived.
type VerificationResult struct {
	Peer   peer.ID
	Result proof.Result
}

func (ConnectionEstablished) isEvent() {}
func (ConnectionClosed) isEvent()      {}
func (SetOurProof) isEvent()           {}
func (ClearOurProof) isEvent()         {}
func (ProofSent) isEvent()             {}
func (SendFailed) isEvent()            {}
func (ProofRead) isEvent()             {}
func (ReadFailed) isEvent()            {}
func (VerificationResult) isEvent()    {}

// Action is an output of the Behaviour, executed by the Node.
type Action interface {
	isAction()
}

// SendProof asks for a send task writing Proof to Peer. Attempt identifies the
// task so that a late failure does not clear a newer attempt.
type SendProof struct {
	Peer    peer.ID
	Proof   []byte
	Attempt uint64
}

// EmitProofReceived hands a first proof from Peer to the verifier.
type EmitProofReceived struct {
	Peer  peer.ID
	Proof []byte
}

// Disconnect asks for every connection to Peer to be closed.
type Disconnect struct {
	Peer   peer.ID
	Reason string
	Err    error
}

// RecordProof stores a verified consensus key for Peer.
type RecordProof struct {
	Peer      peer.ID
	PublicKey []byte
}

// StartAcceptLoop starts the goroutine that accepts inbound proof streams.
type StartAcceptLoop struct{}

func (SendProof) isAction()         {}
func (EmitProofReceived) isAction() {}
func (Disconnect) isAction()        {}
func (RecordProof) isAction()       {}
func (StartAcceptLoop) isAction()   {}

// Disconnect reasons that do not come from the verifier.
const (
	ReasonDuplicateProof = "duplicate_proof"
	ReasonReadFailure    = "read_failure"
)

// ProofReceived is the message sent to the verifier.
type ProofReceived struct {
	Peer  peer.ID
	Proof []byte
}
