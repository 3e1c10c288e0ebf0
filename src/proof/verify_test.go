package proof

import (
	"testing"
)

func TestVerify(t *testing.T) {
	key := newValidatorKey(t)
	sender := newPeerID(t)
	other := newPeerID(t)

	good, err := SignBytes(key, sender)
	if err != nil {
		t.Fatal(err)
	}

	// Signed for another peer, replayed by sender.
	stolen, _ := SignBytes(key, other)

	// Valid structure, signature covers another key.
	forged, _ := Sign(key, sender)
	otherProof, _ := Sign(newValidatorKey(t), sender)
	forged.PublicKey = otherProof.PublicKey
	forgedBytes, _ := forged.Marshal()

	future, _ := Sign(key, sender)
	future.Version = Version + 1
	futureBytes, _ := future.Marshal()

	testCases := []struct {
		name   string
		raw    []byte
		reason Reason
	}{
		{"valid", good, Valid},
		{"unknown version", futureBytes, DecodeFailure},
		{"garbage", []byte("not a proof"), DecodeFailure},
		{"peer mismatch", stolen, PeerMismatch},
		{"bad signature", forgedBytes, BadSignature},
	}

	for _, tc := range testCases {
		res := Verify(tc.raw, sender)
		if res.Reason != tc.reason {
			t.Fatalf("%s: expected %s, got %s (%v)", tc.name, tc.reason, res.Reason, res.Err)
		}
		if res.Verified() != (tc.reason == Valid) {
			t.Fatalf("%s: Verified() inconsistent with reason", tc.name)
		}
		if res.Verified() && len(res.PublicKey) == 0 {
			t.Fatalf("%s: verified result without public key", tc.name)
		}
	}
}

func TestReasonDisconnect(t *testing.T) {
	expected := map[Reason]bool{
		Valid:         false,
		DecodeFailure: false,
		PeerMismatch:  true,
		BadSignature:  true,
	}

	for r, d := range expected {
		if r.Disconnect() != d {
			t.Fatalf("%s: Disconnect() should be %v", r, d)
		}
	}
}
