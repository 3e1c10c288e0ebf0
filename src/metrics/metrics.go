// Package metrics exposes the proof protocol counters to Prometheus.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/mosaicnetworks/valproof/src/peers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder counts proof exchanges and tracks peer classifications. A nil
// *Recorder is valid and records nothing.
type Recorder struct {
	sent           prometheus.Counter
	sendFailures   prometheus.Counter
	received       prometheus.Counter
	duplicates     prometheus.Counter
	readFailures   prometheus.Counter
	verified       prometheus.Counter
	invalid        *prometheus.CounterVec
	disconnects    *prometheus.CounterVec
	connected      prometheus.Gauge
	classification *prometheus.GaugeVec

	stats Stats

	l       sync.Mutex
	classes map[peer.ID]peers.Classification
}

// Stats is a copy of the counters, for display.
type Stats struct {
	Sent           uint64
	SendFailures   uint64
	Received       uint64
	Duplicates     uint64
	ReadFailures   uint64
	Verified       uint64
	Invalid        uint64
	DecodeFailures uint64
	Disconnects    uint64
}

// NewRecorder registers metrics with the provided registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "valproof_proofs_sent_total",
			Help: "Total number of proofs written to peers",
		}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "valproof_proof_send_failures_total",
			Help: "Total number of proof sends that failed",
		}),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "valproof_proofs_received_total",
			Help: "Total number of first proofs received and passed to verification",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "valproof_duplicate_proofs_total",
			Help: "Total number of proofs re-sent within one connection epoch",
		}),
		readFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "valproof_proof_read_failures_total",
			Help: "Total number of inbound proof streams that failed framing",
		}),
		verified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "valproof_proofs_verified_total",
			Help: "Total number of proofs that passed verification",
		}),
		invalid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "valproof_proofs_invalid_total",
			Help: "Total number of proofs that failed verification, by reason",
		}, []string{"reason"}),
		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "valproof_disconnects_total",
			Help: "Total number of peers disconnected by the proof protocol, by reason",
		}, []string{"reason"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "valproof_connected_peers",
			Help: "Number of peers with at least one open connection",
		}),
		classification: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "valproof_peers",
			Help: "Number of known peers by classification",
		}, []string{"classification"}),
		classes: make(map[peer.ID]peers.Classification),
	}

	reg.MustRegister(
		r.sent,
		r.sendFailures,
		r.received,
		r.duplicates,
		r.readFailures,
		r.verified,
		r.invalid,
		r.disconnects,
		r.connected,
		r.classification,
	)

	return r
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ProofSent ...
func (r *Recorder) ProofSent() {
	if r == nil {
		return
	}
	r.sent.Inc()
	atomic.AddUint64(&r.stats.Sent, 1)
}

// SendFailed ...
func (r *Recorder) SendFailed() {
	if r == nil {
		return
	}
	r.sendFailures.Inc()
	atomic.AddUint64(&r.stats.SendFailures, 1)
}

// ProofReceived ...
func (r *Recorder) ProofReceived() {
	if r == nil {
		return
	}
	r.received.Inc()
	atomic.AddUint64(&r.stats.Received, 1)
}

// DuplicateProof ...
func (r *Recorder) DuplicateProof() {
	if r == nil {
		return
	}
	r.duplicates.Inc()
	atomic.AddUint64(&r.stats.Duplicates, 1)
}

// ReadFailed ...
func (r *Recorder) ReadFailed() {
	if r == nil {
		return
	}
	r.readFailures.Inc()
	atomic.AddUint64(&r.stats.ReadFailures, 1)
}

// Verified ...
func (r *Recorder) Verified() {
	if r == nil {
		return
	}
	r.verified.Inc()
	atomic.AddUint64(&r.stats.Verified, 1)
}

// Invalid counts a failed verification. Decode failures are also counted
// separately in Stats.
func (r *Recorder) Invalid(reason string, decodeFailure bool) {
	if r == nil {
		return
	}
	r.invalid.WithLabelValues(reason).Inc()
	atomic.AddUint64(&r.stats.Invalid, 1)
	if decodeFailure {
		atomic.AddUint64(&r.stats.DecodeFailures, 1)
	}
}

// Disconnect counts a disconnection requested by the proof protocol.
func (r *Recorder) Disconnect(reason string) {
	if r == nil {
		return
	}
	r.disconnects.WithLabelValues(reason).Inc()
	atomic.AddUint64(&r.stats.Disconnects, 1)
}

// SetConnectedPeers ...
func (r *Recorder) SetConnectedPeers(n int) {
	if r == nil {
		return
	}
	r.connected.Set(float64(n))
}

// ClassificationChanged implements peers.Observer.
func (r *Recorder) ClassificationChanged(rec peers.Record) {
	if r == nil {
		return
	}

	r.l.Lock()
	defer r.l.Unlock()

	r.classes[rec.PeerID] = rec.Classification

	counts := map[peers.Classification]int{peers.FullNode: 0, peers.Validator: 0}
	for _, c := range r.classes {
		counts[c]++
	}
	for c, n := range counts {
		r.classification.WithLabelValues(c.String()).Set(float64(n))
	}
}

// Stats returns a copy of the counters.
func (r *Recorder) Stats() Stats {
	if r == nil {
		return Stats{}
	}
	return Stats{
		Sent:           atomic.LoadUint64(&r.stats.Sent),
		SendFailures:   atomic.LoadUint64(&r.stats.SendFailures),
		Received:       atomic.LoadUint64(&r.stats.Received),
		Duplicates:     atomic.LoadUint64(&r.stats.Duplicates),
		ReadFailures:   atomic.LoadUint64(&r.stats.ReadFailures),
		Verified:       atomic.LoadUint64(&r.stats.Verified),
		Invalid:        atomic.LoadUint64(&r.stats.Invalid),
		DecodeFailures: atomic.LoadUint64(&r.stats.DecodeFailures),
		Disconnects:    atomic.LoadUint64(&r.stats.Disconnects),
	}
}
