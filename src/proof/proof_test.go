package proof

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/mosaicnetworks/valproof/src/crypto/keys"
	"github.com/ugorji/go/codec"
)

func newPeerID(t testing.TB) peer.ID {
	priv, err := keys.GenerateNodeKey()
	if err != nil {
		t.Fatal(err)
	}
	id, err := keys.PeerID(priv)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func newValidatorKey(t testing.TB) *ecdsa.PrivateKey {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func TestProofMarshalUnmarshal(t *testing.T) {
	key := newValidatorKey(t)
	id := newPeerID(t)

	p, err := Sign(key, id)
	if err != nil {
		t.Fatal(err)
	}

	data, err := p.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	if len(data) > MaxProofSize {
		t.Fatalf("proof is %d bytes", len(data))
	}

	q, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}

	if q.Version != Version ||
		!bytes.Equal(q.PublicKey, p.PublicKey) ||
		q.Peer() != id ||
		!bytes.Equal(q.Signature, p.Signature) {
		t.Fatalf("decoded proof differs: %+v", q)
	}
}

func TestUnmarshalUnsupportedVersion(t *testing.T) {
	p, _ := Sign(newValidatorKey(t), newPeerID(t))
	p.Version = Version + 1

	data, err := p.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Unmarshal(data); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	var mapPayload []byte
	codec.NewEncoderBytes(&mapPayload, &codec.MsgpackHandle{}).Encode(map[string]int{"a": 1})

	var missingSig []byte
	enc := codec.NewEncoderBytes(&missingSig, msgpackHandle())
	enc.Encode(&ValidatorProof{Version: Version, PublicKey: []byte{1}, PeerID: []byte{2}})

	testCases := map[string][]byte{
		"empty":     {},
		"garbage":   {0xc1, 0xc1, 0xc1},
		"map":       mapPayload,
		"no fields": {0x90},
		"no sig":    missingSig,
	}

	for name, data := range testCases {
		_, err := Unmarshal(data)
		if err == nil {
			t.Fatalf("%s: expected an error", name)
		}
		if !errors.Is(err, ErrMalformedProof) && !errors.Is(err, ErrUnsupportedVersion) {
			t.Fatalf("%s: unexpected error type %v", name, err)
		}
	}
}

func TestSigningBytesUnambiguous(t *testing.T) {
	a := SigningBytes([]byte{1, 2}, []byte{3})
	b := SigningBytes([]byte{1}, []byte{2, 3})

	if bytes.Equal(a, b) {
		t.Fatalf("different field splits must not share an encoding")
	}
}
