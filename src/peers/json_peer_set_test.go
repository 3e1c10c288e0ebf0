package peers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mosaicnetworks/valproof/src/crypto/keys"
)

func TestJSONPeerSet(t *testing.T) {
	dir := t.TempDir()

	store := NewJSONPeerSet(dir)

	// Try a read, should get nothing
	peerSet, err := store.PeerSet()
	if err == nil {
		t.Fatalf("store.PeerSet() should generate an error")
	}
	if peerSet != nil {
		t.Fatalf("peerSet: %v", peerSet)
	}

	peers := []*Peer{}
	for i := 0; i < 3; i++ {
		key, _ := keys.GenerateECDSAKey()
		peers = append(peers, NewPeer(keys.PublicKeyHex(&key.PublicKey), fmt.Sprintf("peer%d", i)))
	}

	if err := store.Write(peers); err != nil {
		t.Fatalf("err: %v", err)
	}

	peerSet, err = store.PeerSet()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if peerSet.Len() != 3 {
		t.Fatalf("peerSet should have 3 elements, not %d", peerSet.Len())
	}

	for i, p := range peerSet.Peers {
		if p.PubKeyHex != peers[i].PubKeyHex {
			t.Fatalf("peer %d PubKeyHex should be %s, not %s", i, peers[i].PubKeyHex, p.PubKeyHex)
		}
		if p.Moniker != peers[i].Moniker {
			t.Fatalf("peer %d Moniker should be %s, not %s", i, peers[i].Moniker, p.Moniker)
		}
	}
}

func TestJSONPeerSetCleansesKeys(t *testing.T) {
	dir := t.TempDir()

	key, _ := keys.GenerateECDSAKey()
	hex := keys.PublicKeyHex(&key.PublicKey)
	lower := "0x" + strings.ToLower(strings.TrimPrefix(hex, "0X"))

	content := fmt.Sprintf(`[{"PubKeyHex":"%s","Moniker":"lower"}]`, lower)
	if err := os.WriteFile(filepath.Join(dir, "validators.json"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	peerSet, err := NewJSONPeerSet(dir).PeerSet()
	if err != nil {
		t.Fatal(err)
	}

	if peerSet.Peers[0].PubKeyHex != hex {
		t.Fatalf("PubKeyHex should be normalised to %s, got %s", hex, peerSet.Peers[0].PubKeyHex)
	}

	if _, ok := peerSet.Lookup(keys.FromPublicKey(&key.PublicKey)); !ok {
		t.Fatalf("normalised key should be found by Lookup")
	}
}

func TestJSONPeerSetEmptyFile(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "validators.json"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	peerSet, err := NewJSONPeerSet(dir).PeerSet()
	if err != nil {
		t.Fatal(err)
	}

	if peerSet.Len() != 0 {
		t.Fatalf("empty file should give an empty set")
	}
}
