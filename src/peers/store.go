package peers

import (
	"bytes"
	"sort"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"
)

// Store maps peer IDs to classification records. It is written by the node's
// event loop and may be read from any goroutine through Get and Snapshot.
type Store struct {
	l          sync.RWMutex
	records    map[peer.ID]*Record
	pending    map[peer.ID][]byte
	validators *PeerSet
	observers  []Observer
	logger     *logrus.Entry
}

// Snapshot is a copy of the Store's content at one point in time.
type Snapshot struct {
	Records    []Record
	Pending    int
	Validators int
}

// NewStore creates an empty Store classifying peers against validators.
func NewStore(validators *PeerSet, logger *logrus.Entry) *Store {
	if validators == nil {
		validators = NewPeerSet(nil)
	}
	return &Store{
		records:    make(map[peer.ID]*Record),
		pending:    make(map[peer.ID][]byte),
		validators: validators,
		logger:     logger,
	}
}

// AddObserver registers o for classification changes.
func (s *Store) AddObserver(o Observer) {
	s.l.Lock()
	defer s.l.Unlock()
	s.observers = append(s.observers, o)
}

// ValidatorSet returns the set peers are currently classified against.
func (s *Store) ValidatorSet() *PeerSet {
	s.l.RLock()
	defer s.l.RUnlock()
	return s.validators
}

// AddPeer creates the record of a peer, or refreshes its metadata. If a
// verified key was waiting for this peer, it is applied now. Observers hear
// about every new record.
func (s *Store) AddPeer(id peer.ID, md Metadata) {
	var changed []Record

	s.l.Lock()
	rec, ok := s.records[id]
	created := !ok
	if created {
		rec = &Record{PeerID: id, Classification: FullNode}
		s.records[id] = rec
	}
	rec.Metadata = md

	applied := false
	if key, ok := s.pending[id]; ok {
		delete(s.pending, id)

		s.logger.WithField("peer", id).Debug("Applying pending validator key")

		applied = s.applyKey(rec, key)
	}

	if created || applied {
		changed = append(changed, rec.clone())
	}
	observers := s.observers
	s.l.Unlock()

	notify(observers, changed)
}

// RecordVerifiedProof stores the public key a peer proved to hold. The peer is
// promoted if the key is in the validator set. A key outside the set does not
// promote, and only demotes a peer that was a Validator under a different key.
// Keys for peers without a record are buffered until AddPeer.
func (s *Store) RecordVerifiedProof(id peer.ID, publicKey []byte) {
	key := append([]byte(nil), publicKey...)

	var changed []Record

	s.l.Lock()
	rec, ok := s.records[id]
	if !ok {
		s.pending[id] = key
		s.l.Unlock()

		s.logger.WithField("peer", id).Debug("Buffering validator key until peer is identified")
		return
	}

	if s.applyKey(rec, key) {
		changed = append(changed, rec.clone())
	}
	observers := s.observers
	s.l.Unlock()

	notify(observers, changed)
}

// applyKey must be called with the lock held. It returns true if the
// classification or derived address changed.
func (s *Store) applyKey(rec *Record, key []byte) bool {
	previous := rec.ConsensusPublicKey
	rec.ConsensusPublicKey = key

	if v, ok := s.validators.Lookup(key); ok {
		return setValidator(rec, v)
	}

	if rec.Classification == Validator && !bytes.Equal(previous, key) {
		return setFullNode(rec)
	}

	return false
}

// ReclassifyPeers replaces the validator set and recomputes the classification
// of every peer with a known key. It returns the number of peers whose
// classification or address changed. Calling it twice with the same set
// changes nothing the second time.
func (s *Store) ReclassifyPeers(validators *PeerSet) int {
	if validators == nil {
		validators = NewPeerSet(nil)
	}

	var changed []Record

	s.l.Lock()
	s.validators = validators

	for _, rec := range s.records {
		if rec.ConsensusPublicKey == nil {
			continue
		}

		var c bool
		if v, ok := validators.Lookup(rec.ConsensusPublicKey); ok {
			c = setValidator(rec, v)
		} else {
			c = setFullNode(rec)
		}

		if c {
			changed = append(changed, rec.clone())
		}
	}
	observers := s.observers
	s.l.Unlock()

	s.logger.WithFields(logrus.Fields{
		"validators": validators.Len(),
		"changed":    len(changed),
	}).Debug("Reclassified peers")

	notify(observers, changed)

	return len(changed)
}

func setValidator(rec *Record, v *Peer) bool {
	addr := v.Address()
	if rec.Classification == Validator && rec.DerivedAddress == addr && rec.Moniker == v.Moniker {
		return false
	}
	rec.Classification = Validator
	rec.DerivedAddress = addr
	rec.Moniker = v.Moniker
	return true
}

func setFullNode(rec *Record) bool {
	if rec.Classification == FullNode && rec.DerivedAddress == "" {
		return false
	}
	rec.Classification = FullNode
	rec.DerivedAddress = ""
	rec.Moniker = ""
	return true
}

func notify(observers []Observer, changed []Record) {
	for _, rec := range changed {
		for _, o := range observers {
			o.ClassificationChanged(rec)
		}
	}
}

// Get returns a copy of a peer's record.
func (s *Store) Get(id peer.ID) (Record, bool) {
	s.l.RLock()
	defer s.l.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.l.RLock()
	defer s.l.RUnlock()
	return len(s.records)
}

// Snapshot returns a copy of every record, sorted by peer ID.
func (s *Store) Snapshot() Snapshot {
	s.l.RLock()
	snap := Snapshot{
		Records: make([]Record, 0, len(s.records)),
		Pending: len(s.pending),
	}
	for _, rec := range s.records {
		snap.Records = append(snap.Records, rec.clone())
		if rec.Classification == Validator {
			snap.Validators++
		}
	}
	s.l.RUnlock()

	sort.Slice(snap.Records, func(i, j int) bool {
		return snap.Records[i].PeerID < snap.Records[j].PeerID
	})

	return snap
}
