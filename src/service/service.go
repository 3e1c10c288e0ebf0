package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/mosaicnetworks/valproof/src/common"
	"github.com/mosaicnetworks/valproof/src/metrics"
	"github.com/mosaicnetworks/valproof/src/node"
	"github.com/mosaicnetworks/valproof/src/peers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Service exposes the state of a node over HTTP.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	mux         *http.ServeMux
	server      *http.Server
	logger      *logrus.Entry
}

// NewService creates a Service. Metrics from gatherer are served at /metrics
// when it is not nil.
func NewService(bindAddress string, n *node.Node, gatherer prometheus.Gatherer, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers(gatherer)

	return &service
}

func (s *Service) registerHandlers(gatherer prometheus.Gatherer) {
	s.logger.Debug("Registering API handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/peers", s.makeHandler(s.GetPeers))
	s.mux.HandleFunc("/validators", s.makeHandler(s.GetValidators))
	s.mux.HandleFunc("/session", s.makeHandler(s.GetSession))
	if gatherer != nil {
		s.mux.Handle("/metrics", metrics.Handler(gatherer))
	}
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the handler serving every endpoint.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving API")

	s.Lock()
	s.server = &http.Server{Addr: s.bindAddress, Handler: s.mux}
	server := s.server
	s.Unlock()

	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error(err)
	}
}

// Close stops a server started with Serve.
func (s *Service) Close() error {
	s.Lock()
	server := s.server
	s.Unlock()

	if server == nil {
		return nil
	}
	return server.Close()
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// PeerInfo is the JSON view of a classification record.
type PeerInfo struct {
	PeerID         string
	PublicKey      string `json:",omitempty"`
	DerivedAddress string `json:",omitempty"`
	Moniker        string `json:",omitempty"`
	Classification peers.Classification
	AgentVersion   string
	ListenAddrs    []string
	IdentifiedAt   time.Time
}

// GetPeers returns the classification of every known peer.
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	snap := s.node.Store().Snapshot()

	res := make([]PeerInfo, 0, len(snap.Records))
	for _, rec := range snap.Records {
		info := PeerInfo{
			PeerID:         rec.PeerID.String(),
			DerivedAddress: rec.DerivedAddress,
			Moniker:        rec.Moniker,
			Classification: rec.Classification,
			AgentVersion:   rec.Metadata.AgentVersion,
			ListenAddrs:    rec.Metadata.ListenAddrs,
			IdentifiedAt:   rec.Metadata.IdentifiedAt,
		}
		if rec.ConsensusPublicKey != nil {
			info.PublicKey = common.EncodeToString(rec.ConsensusPublicKey)
		}
		res = append(res, info)
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(res)
}

// GetValidators returns the validator set peers are classified against.
func (s *Service) GetValidators(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)

	encoder.Encode(s.node.Store().ValidatorSet().Peers)
}

// GetSession returns the proof exchange state of every connected peer.
func (s *Service) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	state, err := s.node.DumpState(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Dumping session state")

		http.Error(w, err.Error(), http.StatusServiceUnavailable)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(state)
}
