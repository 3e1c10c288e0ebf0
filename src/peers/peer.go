package peers

import (
	"github.com/mosaicnetworks/valproof/src/common"
	"github.com/mosaicnetworks/valproof/src/crypto/keys"
)

// Peer is an entry of a validator set.
type Peer struct {
	PubKeyHex string
	Moniker   string
}

// NewPeer creates a Peer from the hex representation of its public key.
func NewPeer(pubKeyHex, moniker string) *Peer {
	return &Peer{
		PubKeyHex: pubKeyHex,
		Moniker:   moniker,
	}
}

// PubKeyString returns the canonical hex form of the public key.
func (p *Peer) PubKeyString() string {
	return canonicalKey(p.PubKeyBytes())
}

// PubKeyBytes returns the public key, or nil if PubKeyHex is not valid hex.
func (p *Peer) PubKeyBytes() []byte {
	b, err := common.DecodeFromString(p.PubKeyHex)
	if err != nil {
		return nil
	}
	return b
}

// Address returns the validator address derived from the public key.
func (p *Peer) Address() string {
	return keys.Address(canonicalBytes(p.PubKeyBytes()))
}

// canonicalBytes returns the uncompressed form of a secp256k1 key so that
// compressed and uncompressed encodings of the same key compare equal. Bytes
// that do not parse are returned as they are.
func canonicalBytes(pub []byte) []byte {
	k, err := keys.ParsePublicKey(pub)
	if err != nil {
		return pub
	}
	return keys.FromPublicKey(k)
}

func canonicalKey(pub []byte) string {
	return common.EncodeToString(canonicalBytes(pub))
}
