package service

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mosaicnetworks/valproof/src/common"
	"github.com/mosaicnetworks/valproof/src/crypto/keys"
	"github.com/mosaicnetworks/valproof/src/metrics"
	"github.com/mosaicnetworks/valproof/src/net"
	"github.com/mosaicnetworks/valproof/src/node"
	"github.com/mosaicnetworks/valproof/src/peers"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestService(t *testing.T) *Service {
	nodeKey, err := keys.GenerateNodeKey()
	if err != nil {
		t.Fatal(err)
	}
	id, err := keys.PeerID(nodeKey)
	if err != nil {
		t.Fatal(err)
	}

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}
	validators := peers.NewPeerSet([]*peers.Peer{
		peers.NewPeer(keys.PublicKeyHex(&key.PublicKey), "alice"),
	})

	reg := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(reg)

	trans := net.NewInmemNetwork().NewTransport(id, "/test")
	store := peers.NewStore(validators, common.NewTestEntry(t, "peers"))
	n := node.NewNode(node.TestConfig(t), trans, store, recorder)
	n.RunAsync()
	t.Cleanup(n.Shutdown)

	return NewService("127.0.0.1:0", n, reg, common.NewTestEntry(t, "service"))
}

func get(t *testing.T, s *Service, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	if rec.Code != 200 {
		t.Fatalf("GET %s returned %d: %s", path, rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" && path != "/metrics" {
		t.Fatalf("GET %s should enable CORS", path)
	}
	return rec
}

func TestStats(t *testing.T) {
	s := newTestService(t)

	var stats map[string]string
	if err := json.Unmarshal(get(t, s, "/stats").Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats["validator_set_size"] != "1" {
		t.Fatalf("validator_set_size should be 1, got %s", stats["validator_set_size"])
	}
}

func TestValidators(t *testing.T) {
	s := newTestService(t)

	var ps []*peers.Peer
	if err := json.Unmarshal(get(t, s, "/validators").Body.Bytes(), &ps); err != nil {
		t.Fatal(err)
	}
	if len(ps) != 1 || ps[0].Moniker != "alice" {
		t.Fatalf("unexpected validators %v", ps)
	}
}

func TestPeersAndSession(t *testing.T) {
	s := newTestService(t)

	var ps []PeerInfo
	if err := json.Unmarshal(get(t, s, "/peers").Body.Bytes(), &ps); err != nil {
		t.Fatal(err)
	}
	if len(ps) != 0 {
		t.Fatalf("no peer expected, got %v", ps)
	}

	var state node.SessionState
	if err := json.Unmarshal(get(t, s, "/session").Body.Bytes(), &state); err != nil {
		t.Fatal(err)
	}
	if !state.Enabled || state.HasProof {
		t.Fatalf("unexpected session state %+v", state)
	}
}

func TestMetrics(t *testing.T) {
	s := newTestService(t)

	body := get(t, s, "/metrics").Body.String()
	if !strings.Contains(body, "valproof_proofs_verified_total") {
		t.Fatalf("metrics should be served:\n%s", body)
	}
}
