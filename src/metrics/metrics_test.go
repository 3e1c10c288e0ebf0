package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/mosaicnetworks/valproof/src/common"
	"github.com/mosaicnetworks/valproof/src/crypto/keys"
	"github.com/mosaicnetworks/valproof/src/peers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.ProofSent()
	r.ProofSent()
	r.SendFailed()
	r.ProofReceived()
	r.DuplicateProof()
	r.Verified()
	r.Invalid("decode_failure", true)
	r.Invalid("bad_signature", false)
	r.Disconnect("bad_signature")

	stats := r.Stats()
	if stats.Sent != 2 || stats.SendFailures != 1 || stats.Received != 1 ||
		stats.Duplicates != 1 || stats.Verified != 1 || stats.Invalid != 2 ||
		stats.DecodeFailures != 1 || stats.Disconnects != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	if v := testutil.ToFloat64(r.invalid.WithLabelValues("bad_signature")); v != 1 {
		t.Fatalf("bad_signature counter should be 1, not %v", v)
	}

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "valproof_proofs_sent_total 2") {
		t.Fatalf("metrics output should contain the sent counter:\n%s", rec.Body.String())
	}
}

func TestRecorderClassification(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.ClassificationChanged(peers.Record{PeerID: "a", Classification: peers.Validator})
	r.ClassificationChanged(peers.Record{PeerID: "b", Classification: peers.Validator})
	r.ClassificationChanged(peers.Record{PeerID: "a", Classification: peers.FullNode})

	if v := testutil.ToFloat64(r.classification.WithLabelValues("Validator")); v != 1 {
		t.Fatalf("1 validator expected, got %v", v)
	}
	if v := testutil.ToFloat64(r.classification.WithLabelValues("FullNode")); v != 1 {
		t.Fatalf("1 full node expected, got %v", v)
	}
}

func TestRecorderCountsIdentifiedPeers(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	validator, _ := keys.GenerateECDSAKey()
	set := peers.NewPeerSet([]*peers.Peer{
		peers.NewPeer(keys.PublicKeyHex(&validator.PublicKey), "v0"),
	})

	s := peers.NewStore(set, common.NewTestEntry(t, "peers"))
	s.AddObserver(r)

	ids := make([]peer.ID, 3)
	for i := range ids {
		nodeKey, _ := keys.GenerateNodeKey()
		id, err := keys.PeerID(nodeKey)
		if err != nil {
			t.Fatal(err)
		}
		ids[i] = id
		s.AddPeer(id, peers.Metadata{})
	}

	if v := testutil.ToFloat64(r.classification.WithLabelValues("FullNode")); v != 3 {
		t.Fatalf("3 full nodes expected after identification, got %v", v)
	}

	s.RecordVerifiedProof(ids[0], keys.FromPublicKey(&validator.PublicKey))

	if v := testutil.ToFloat64(r.classification.WithLabelValues("FullNode")); v != 2 {
		t.Fatalf("2 full nodes expected after a promotion, got %v", v)
	}
	if v := testutil.ToFloat64(r.classification.WithLabelValues("Validator")); v != 1 {
		t.Fatalf("1 validator expected after a promotion, got %v", v)
	}
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.ProofSent()
	r.ClassificationChanged(peers.Record{})
	if r.Stats() != (Stats{}) {
		t.Fatalf("nil recorder should have empty stats")
	}
}
