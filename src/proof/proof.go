package proof

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/ugorji/go/codec"
)

// Version is the only proof format understood by this implementation.
const Version uint8 = 1

var (
	// ErrUnsupportedVersion is returned when a payload carries a format version
	// other than Version.
	ErrUnsupportedVersion = errors.New("unsupported proof version")

	// ErrMalformedProof is returned when a payload decodes but misses one of
	// its fields.
	ErrMalformedProof = errors.New("malformed proof")
)

// ValidatorProof binds PublicKey, a serialized secp256k1 validator key, to
// PeerID, the binary form of a libp2p peer ID. Signature is a DER signature by
// the validator key over SigningBytes(PublicKey, PeerID).
//
// On the wire it is a msgpack array [version, public_key, peer_id, signature].
// msgpack prefixes each byte string with its length, so keys and signatures of
// any size can be carried without changing the layout.
type ValidatorProof struct {
	Version   uint8
	PublicKey []byte
	PeerID    []byte
	Signature []byte
}

// NewValidatorProof assembles a proof of the current Version.
func NewValidatorProof(publicKey []byte, peerID peer.ID, signature []byte) *ValidatorProof {
	return &ValidatorProof{
		Version:   Version,
		PublicKey: publicKey,
		PeerID:    []byte(peerID),
		Signature: signature,
	}
}

// Peer returns the declared peer ID.
func (p *ValidatorProof) Peer() peer.ID {
	return peer.ID(p.PeerID)
}

func msgpackHandle() *codec.MsgpackHandle {
	mh := &codec.MsgpackHandle{WriteExt: true}
	mh.StructToArray = true
	return mh
}

// Marshal encodes the proof. The result is what gets framed and sent.
func (p *ValidatorProof) Marshal() ([]byte, error) {
	var b bytes.Buffer

	enc := codec.NewEncoder(&b, msgpackHandle())

	if err := enc.Encode(p); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal decodes a proof. The version is checked before any other field is
// interpreted.
func Unmarshal(data []byte) (*ValidatorProof, error) {
	var fields []interface{}

	dec := codec.NewDecoderBytes(data, msgpackHandle())
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedProof)
	}

	version, ok := asUint(fields[0])
	if !ok {
		return nil, fmt.Errorf("%w: bad version field", ErrMalformedProof)
	}
	if version != uint64(Version) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	p := new(ValidatorProof)

	dec = codec.NewDecoderBytes(data, msgpackHandle())
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}

	if len(p.PublicKey) == 0 || len(p.PeerID) == 0 || len(p.Signature) == 0 {
		return nil, fmt.Errorf("%w: missing field", ErrMalformedProof)
	}

	return p, nil
}

func asUint(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	default:
		return 0, false
	}
}
