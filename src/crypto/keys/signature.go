package keys

import (
	"crypto/ecdsa"
	"errors"

	"github.com/btcsuite/btcd/btcec"
)

// Sign signs a digest with the validator key. Signatures are deterministic
// (RFC6979) and returned in DER form.
func Sign(priv *ecdsa.PrivateKey, hash []byte) ([]byte, error) {
	if priv == nil {
		return nil, errors.New("nil private key")
	}
	sig, err := (*btcec.PrivateKey)(priv).Sign(hash)
	if err != nil {
		return nil, err
	}
	return sig.Serialize(), nil
}

// Verify checks a DER signature of hash against pub. Malformed signatures do
// not verify.
func Verify(pub *ecdsa.PublicKey, hash []byte, sig []byte) bool {
	if pub == nil {
		return false
	}
	s, err := btcec.ParseDERSignature(sig, btcec.S256())
	if err != nil {
		return false
	}
	return s.Verify(hash, (*btcec.PublicKey)(pub))
}
