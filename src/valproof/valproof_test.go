package valproof

import (
	"bytes"
	"crypto/ecdsa"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/mosaicnetworks/valproof/src/config"
	"github.com/mosaicnetworks/valproof/src/crypto/keys"
	"github.com/mosaicnetworks/valproof/src/net"
	"github.com/mosaicnetworks/valproof/src/peers"
	"github.com/mosaicnetworks/valproof/src/proof"
	"github.com/sirupsen/logrus"
)

const testProtocol = "/valproof/validator-proof/test"

func newNodeID(t *testing.T) peer.ID {
	nodeKey, err := keys.GenerateNodeKey()
	if err != nil {
		t.Fatal(err)
	}
	id, err := keys.PeerID(nodeKey)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func writeValidators(t *testing.T, datadir string, ks ...*ecdsa.PrivateKey) {
	ps := []*peers.Peer{}
	for _, k := range ks {
		ps = append(ps, peers.NewPeer(keys.PublicKeyHex(&k.PublicKey), ""))
	}
	if err := peers.NewJSONPeerSet(datadir).Write(ps); err != nil {
		t.Fatal(err)
	}
}

func newTestEngine(t *testing.T, network *net.InmemNetwork, key *ecdsa.PrivateKey, validators ...*ecdsa.PrivateKey) (*Engine, peer.ID) {
	datadir := t.TempDir()
	writeValidators(t, datadir, validators...)

	conf := config.NewTestConfig(t, logrus.DebugLevel)
	conf.SetDataDir(datadir)
	conf.NoService = true
	conf.StreamTimeout = time.Second
	conf.Key = key

	id := newNodeID(t)

	engine := NewEngine(conf)
	engine.Transport = network.NewTransport(id, testProtocol)

	if err := engine.Init(); err != nil {
		t.Fatal(err)
	}

	return engine, id
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func TestEngineValidatorSetChanges(t *testing.T) {
	network := net.NewInmemNetwork()

	keyA, _ := keys.GenerateECDSAKey()
	keyB, _ := keys.GenerateECDSAKey()

	a, idA := newTestEngine(t, network, keyA, keyA)
	b, idB := newTestEngine(t, network, keyB, keyA)

	a.RunAsync()
	t.Cleanup(a.Shutdown)
	b.RunAsync()
	t.Cleanup(b.Shutdown)

	if _, err := network.Connect(idA, idB); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "A classified as validator by B", func() bool {
		rec, ok := b.Peers.Get(idA)
		return ok && rec.Classification == peers.Validator
	})

	// B is not in the set, so it never announced its proof.
	if rec, ok := a.Peers.Get(idB); !ok || rec.Classification != peers.FullNode {
		t.Fatalf("B should be a full node for A, got %+v", rec)
	}
	if got := b.Node.GetStats()["validator"]; got != "false" {
		t.Fatalf("B should not announce a proof, got validator=%s", got)
	}

	if err := b.SetValidatorSet(peers.NewPeerSet(nil)); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "A demoted by B", func() bool {
		rec, ok := b.Peers.Get(idA)
		return ok && rec.Classification == peers.FullNode
	})

	saved, err := b.Store.GetValidatorSet()
	if err != nil {
		t.Fatal(err)
	}
	if saved.Len() != 0 {
		t.Fatalf("saved validator set should be empty, got %d peers", saved.Len())
	}

	if err := a.SetValidatorSet(peers.NewPeerSet(nil)); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "A to stop announcing", func() bool {
		return a.Node.GetStats()["validator"] == "false"
	})
}

func TestEngineFullNode(t *testing.T) {
	network := net.NewInmemNetwork()

	e, _ := newTestEngine(t, network, nil)
	defer e.Shutdown()

	if e.Config.Key != nil {
		t.Fatalf("no key should have been loaded")
	}
	if _, err := e.Proof(); err != ErrNoValidatorKey {
		t.Fatalf("expected ErrNoValidatorKey, got %v", err)
	}
}

func TestKeygen(t *testing.T) {
	datadir := t.TempDir()

	key, err := Keygen(datadir)
	if err != nil {
		t.Fatal(err)
	}

	read, err := keys.NewSimpleKeyfile(filepath.Join(datadir, config.DefaultKeyfile)).ReadKey()
	if err != nil {
		t.Fatal(err)
	}
	if keys.PublicKeyHex(&read.PublicKey) != keys.PublicKeyHex(&key.PublicKey) {
		t.Fatalf("read key does not match generated key")
	}

	if _, err := Keygen(datadir); err == nil {
		t.Fatalf("Keygen should refuse to overwrite an existing key")
	}
}

func TestSignProofIsReusedOnStart(t *testing.T) {
	datadir := t.TempDir()

	if _, err := Keygen(datadir); err != nil {
		t.Fatal(err)
	}

	conf := config.NewTestConfig(t, logrus.DebugLevel)
	conf.SetDataDir(datadir)
	conf.Store = true
	conf.NoService = true

	signed, id, err := SignProof(conf)
	if err != nil {
		t.Fatal(err)
	}

	if res := proof.Verify(signed, id); !res.Verified() {
		t.Fatalf("signed proof does not verify: %s", res.Reason)
	}

	if _, err := os.Stat(conf.NodeKeyfile()); err != nil {
		t.Fatalf("node key should have been created: %v", err)
	}

	e := NewEngine(conf)
	e.Transport = net.NewInmemNetwork().NewTransport(id, testProtocol)
	if err := e.Init(); err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()

	loaded, err := e.Proof()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(loaded, signed) {
		t.Fatalf("engine should reuse the stored proof")
	}
}

func TestStoredProofForOtherNodeIsReplaced(t *testing.T) {
	datadir := t.TempDir()

	key, err := Keygen(datadir)
	if err != nil {
		t.Fatal(err)
	}

	conf := config.NewTestConfig(t, logrus.DebugLevel)
	conf.SetDataDir(datadir)
	conf.Store = true
	conf.NoService = true

	stale, _, err := SignProof(conf)
	if err != nil {
		t.Fatal(err)
	}

	id := newNodeID(t)

	e := NewEngine(conf)
	e.Transport = net.NewInmemNetwork().NewTransport(id, testProtocol)
	if err := e.Init(); err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()

	fresh, err := e.Proof()
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(fresh, stale) {
		t.Fatalf("a proof bound to another node key should not be reused")
	}

	p, err := proof.Unmarshal(fresh)
	if err != nil {
		t.Fatal(err)
	}
	if p.Peer() != id {
		t.Fatalf("proof should bind %s, got %s", id, p.Peer())
	}
	if !bytes.Equal(p.PublicKey, keys.FromPublicKey(&key.PublicKey)) {
		t.Fatalf("proof should carry the validator key")
	}
}
