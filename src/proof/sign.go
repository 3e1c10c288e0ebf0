package proof

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/mosaicnetworks/valproof/src/crypto"
	"github.com/mosaicnetworks/valproof/src/crypto/keys"
	"github.com/multiformats/go-varint"
)

// signingDomain separates proof signatures from any other use of a validator
// key.
const signingDomain = "valproof/validator-proof/v1"

// SigningBytes returns the message covered by a proof signature. Both fields
// are length-prefixed so that no two (publicKey, peerID) pairs share an
// encoding.
func SigningBytes(publicKey []byte, peerID []byte) []byte {
	buf := make([]byte, 0, len(signingDomain)+len(publicKey)+len(peerID)+2*varint.MaxLenUvarint63)
	buf = append(buf, signingDomain...)
	buf = append(buf, varint.ToUvarint(uint64(len(publicKey)))...)
	buf = append(buf, publicKey...)
	buf = append(buf, varint.ToUvarint(uint64(len(peerID)))...)
	buf = append(buf, peerID...)
	return buf
}

// Sign produces the proof binding key to peerID.
func Sign(key *ecdsa.PrivateKey, peerID peer.ID) (*ValidatorProof, error) {
	pub := keys.FromPublicKey(&key.PublicKey)

	sig, err := keys.Sign(key, crypto.SHA256(SigningBytes(pub, []byte(peerID))))
	if err != nil {
		return nil, fmt.Errorf("signing proof: %w", err)
	}

	return NewValidatorProof(pub, peerID, sig), nil
}

// SignBytes is Sign followed by Marshal, checked against MaxProofSize. The
// result is the payload a validator hands to its node.
func SignBytes(key *ecdsa.PrivateKey, peerID peer.ID) ([]byte, error) {
	p, err := Sign(key, peerID)
	if err != nil {
		return nil, err
	}

	data, err := p.Marshal()
	if err != nil {
		return nil, err
	}

	if len(data) > MaxProofSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrProofTooLarge, len(data))
	}

	return data, nil
}

// VerifySignature checks the proof signature against its own public key.
func (p *ValidatorProof) VerifySignature() bool {
	pub, err := keys.ParsePublicKey(p.PublicKey)
	if err != nil {
		return false
	}

	return keys.Verify(pub, crypto.SHA256(SigningBytes(p.PublicKey, p.PeerID)), p.Signature)
}
