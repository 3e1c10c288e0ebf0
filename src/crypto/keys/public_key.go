package keys

import (
	"crypto/ecdsa"
	"errors"

	"github.com/btcsuite/btcd/btcec"
	"github.com/mosaicnetworks/valproof/src/common"
	"github.com/mosaicnetworks/valproof/src/crypto"
)

// AddressLength is the number of bytes of a validator address.
const AddressLength = 20

// ErrInvalidPublicKey is returned when bytes do not encode a point on the
// secp256k1 curve.
var ErrInvalidPublicKey = errors.New("invalid secp256k1 public key")

// FromPublicKey outputs the uncompressed form of the public key.
func FromPublicKey(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return (*btcec.PublicKey)(pub).SerializeUncompressed()
}

// ParsePublicKey parses a compressed or uncompressed secp256k1 public key.
func ParsePublicKey(pub []byte) (*ecdsa.PublicKey, error) {
	if len(pub) == 0 {
		return nil, ErrInvalidPublicKey
	}
	key, err := btcec.ParsePubKey(pub, btcec.S256())
	if err != nil {
		return nil, ErrInvalidPublicKey
	}
	return key.ToECDSA(), nil
}

// PublicKeyHex returns the hexadecimal reprentation of the uncompressed form of
// the public key
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	return common.EncodeToString(FromPublicKey(pub))
}

// Address derives the validator address of a serialized public key: the first
// AddressLength bytes of its SHA256 hash.
func Address(pub []byte) string {
	return common.EncodeToString(crypto.SHA256(pub)[:AddressLength])
}
