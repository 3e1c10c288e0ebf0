package peers

import (
	"bytes"
	"encoding/json"

	"github.com/mosaicnetworks/valproof/src/common"
	"github.com/mosaicnetworks/valproof/src/crypto"
)

//PeerSet is a validator set. It is never modified in place; WithNewPeer and
//WithRemovedPeer return new sets.
type PeerSet struct {
	Peers    []*Peer          `json:"peers"`
	ByPubKey map[string]*Peer `json:"-"`

	hash []byte
	hex  string
}

//NewPeerSet creates a new PeerSet from a list of Peers
func NewPeerSet(peers []*Peer) *PeerSet {
	peerSet := &PeerSet{
		ByPubKey: make(map[string]*Peer),
	}

	for _, peer := range peers {
		peerSet.ByPubKey[peer.PubKeyString()] = peer
	}

	peerSet.Peers = peers

	hash := []byte{}
	for _, p := range peers {
		hash = crypto.SimpleHashFromTwoHashes(hash, canonicalBytes(p.PubKeyBytes()))
	}
	peerSet.hash = hash
	peerSet.hex = common.EncodeToString(hash)

	return peerSet
}

//WithNewPeer returns a new PeerSet with a list of peers including the new one.
func (peerSet *PeerSet) WithNewPeer(peer *Peer) *PeerSet {
	peers := append([]*Peer{}, peerSet.Peers...)

	//don't add it if it already exists
	if _, ok := peerSet.ByPubKey[peer.PubKeyString()]; !ok {
		peers = append(peers, peer)
	}

	return NewPeerSet(peers)
}

//WithRemovedPeer returns a new PeerSet with a list of peers excluding the
//provided one
func (peerSet *PeerSet) WithRemovedPeer(peer *Peer) *PeerSet {
	peers := []*Peer{}
	for _, p := range peerSet.Peers {
		if p.PubKeyString() != peer.PubKeyString() {
			peers = append(peers, p)
		}
	}
	return NewPeerSet(peers)
}

//Lookup returns the entry holding the given serialized public key.
func (peerSet *PeerSet) Lookup(pubKey []byte) (*Peer, bool) {
	if peerSet == nil || len(pubKey) == 0 {
		return nil, false
	}
	p, ok := peerSet.ByPubKey[canonicalKey(pubKey)]
	return p, ok
}

//PubKeys returns the PeerSet's slice of public keys
func (peerSet *PeerSet) PubKeys() []string {
	res := []string{}

	for _, peer := range peerSet.Peers {
		res = append(res, peer.PubKeyString())
	}

	return res
}

//Len returns the number of Peers in the PeerSet
func (peerSet *PeerSet) Len() int {
	if peerSet == nil {
		return 0
	}
	return len(peerSet.ByPubKey)
}

// Hash uniquely identifies a PeerSet. It is computed by hashing (SHA256) their
// public keys together, one by one.
func (peerSet *PeerSet) Hash() []byte {
	return peerSet.hash
}

//Hex is the hexadecimal representation of Hash
func (peerSet *PeerSet) Hex() string {
	return peerSet.hex
}

//Marshal marshals the peerset
func (peerSet *PeerSet) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(peerSet.Peers); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
