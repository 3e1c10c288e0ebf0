package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestSHA256(t *testing.T) {
	// sha256("abc")
	want, _ := hex.DecodeString("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")

	if got := SHA256([]byte("abc")); !bytes.Equal(got, want) {
		t.Fatalf("SHA256(abc) = %X", got)
	}
}

func TestSimpleHashFromTwoHashes(t *testing.T) {
	a := SimpleHashFromTwoHashes([]byte("left"), []byte("right"))
	b := SHA256([]byte("leftright"))

	if !bytes.Equal(a, b) {
		t.Fatalf("SimpleHashFromTwoHashes should hash the concatenation")
	}
}
