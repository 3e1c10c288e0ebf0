package keys

import (
	"crypto/rand"
	"os"

	p2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

// GenerateNodeKey creates a new Ed25519 identity key for the networking layer.
func GenerateNodeKey() (p2pcrypto.PrivKey, error) {
	priv, _, err := p2pcrypto.GenerateEd25519Key(rand.Reader)
	return priv, err
}

// LoadOrCreateNodeKey reads the node key from file, creating and persisting a
// new one if the file does not exist. The boolean is true when a key was
// created.
func LoadOrCreateNodeKey(file *SimpleKeyfile) (p2pcrypto.PrivKey, bool, error) {
	key, err := file.ReadNodeKey()
	if err == nil {
		return key, false, nil
	}
	if !os.IsNotExist(err) {
		return nil, false, err
	}

	key, err = GenerateNodeKey()
	if err != nil {
		return nil, false, err
	}

	if err := file.WriteNodeKey(key); err != nil {
		return nil, false, err
	}

	return key, true, nil
}

// PeerID returns the peer ID derived from a node key.
func PeerID(key p2pcrypto.PrivKey) (peer.ID, error) {
	return peer.IDFromPrivateKey(key)
}
