package keys

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	p2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
)

// SimpleKeyfile stores a single key as a hex dump in a file that only its owner
// can read. It is used for both the validator key and the node key.
type SimpleKeyfile struct {
	l       sync.Mutex
	keyfile string
}

// NewSimpleKeyfile instantiates a new SimpleKeyfile with an underlying file
func NewSimpleKeyfile(keyfile string) *SimpleKeyfile {
	return &SimpleKeyfile{
		keyfile: keyfile,
	}
}

// Path returns the location of the underlying file.
func (k *SimpleKeyfile) Path() string {
	return k.keyfile
}

// CheckFileInfo verifies that the file exists and has user permissions only.
func (k *SimpleKeyfile) CheckFileInfo() error {
	info, err := os.Stat(k.keyfile)
	if err != nil {
		return err
	}

	perm := info.Mode().Perm()

	// group and others bits
	var nonUserMask os.FileMode = (1 << 6) - 1

	if perm&nonUserMask != 0 {
		return fmt.Errorf("%s file permissions should exclude 'groups' and 'others'. Got %o", filepath.Base(k.keyfile), perm)
	}

	return nil
}

// ReadKey reads a validator key. The file is expected to contain a raw hex dump
// of the key's D value, as produced by WriteKey.
func (k *SimpleKeyfile) ReadKey() (*ecdsa.PrivateKey, error) {
	raw, err := k.readRaw()
	if err != nil {
		return nil, err
	}
	return ParsePrivateKey(raw)
}

// WriteKey writes a raw hex dump of the validator key's D value.
func (k *SimpleKeyfile) WriteKey(key *ecdsa.PrivateKey) error {
	return k.writeRaw(DumpPrivateKey(key))
}

// ReadNodeKey reads a libp2p identity key written by WriteNodeKey.
func (k *SimpleKeyfile) ReadNodeKey() (p2pcrypto.PrivKey, error) {
	raw, err := k.readRaw()
	if err != nil {
		return nil, err
	}
	return p2pcrypto.UnmarshalPrivateKey(raw)
}

// WriteNodeKey writes the protobuf encoding of a libp2p identity key.
func (k *SimpleKeyfile) WriteNodeKey(key p2pcrypto.PrivKey) error {
	raw, err := p2pcrypto.MarshalPrivateKey(key)
	if err != nil {
		return err
	}
	return k.writeRaw(raw)
}

func (k *SimpleKeyfile) readRaw() ([]byte, error) {
	k.l.Lock()
	defer k.l.Unlock()

	if err := k.CheckFileInfo(); err != nil {
		return nil, err
	}

	buf, err := os.ReadFile(k.keyfile)
	if err != nil {
		return nil, err
	}

	return hex.DecodeString(strings.TrimSpace(string(buf)))
}

func (k *SimpleKeyfile) writeRaw(raw []byte) error {
	k.l.Lock()
	defer k.l.Unlock()

	if err := os.MkdirAll(filepath.Dir(k.keyfile), 0700); err != nil {
		return err
	}

	return os.WriteFile(k.keyfile, []byte(hex.EncodeToString(raw)), 0600)
}
