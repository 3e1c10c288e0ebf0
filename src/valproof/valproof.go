// Package valproof assembles a complete node: keys, validator set, stores,
// libp2p transport, proof protocol, and HTTP service.
package valproof

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/mosaicnetworks/valproof/src/common"
	"github.com/mosaicnetworks/valproof/src/config"
	"github.com/mosaicnetworks/valproof/src/crypto/keys"
	"github.com/mosaicnetworks/valproof/src/metrics"
	"github.com/mosaicnetworks/valproof/src/net"
	"github.com/mosaicnetworks/valproof/src/node"
	"github.com/mosaicnetworks/valproof/src/peers"
	"github.com/mosaicnetworks/valproof/src/proof"
	"github.com/mosaicnetworks/valproof/src/service"
	"github.com/mosaicnetworks/valproof/src/store"
	"github.com/mosaicnetworks/valproof/src/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// ErrNoValidatorKey is returned when an operation needs the validator key and
// none is configured.
var ErrNoValidatorKey = errors.New("no validator key")

// Engine is the top-level object of a valproof node.
type Engine struct {
	Config     *config.Config
	Node       *node.Node
	Transport  net.Transport
	Store      store.Store
	Peers      *peers.Store
	Validators *peers.PeerSet
	Service    *service.Service
	Metrics    *metrics.Recorder
	Registry   *prometheus.Registry

	// proof is our signed proof, nil if we have no validator key.
	proof []byte

	l      sync.Mutex
	logger *logrus.Entry
}

// NewEngine creates an Engine. A Transport may be assigned before Init to
// run over something else than libp2p.
func NewEngine(conf *config.Config) *Engine {
	return &Engine{
		Config: conf,
		logger: conf.Logger(),
	}
}

// Init sets up every component. It does not start any goroutine.
func (e *Engine) Init() error {
	if err := e.initKey(); err != nil {
		return err
	}

	if err := e.initStore(); err != nil {
		return err
	}

	if err := e.initValidators(); err != nil {
		return err
	}

	if err := e.initTransport(); err != nil {
		return err
	}

	if err := e.initProof(); err != nil {
		return err
	}

	if err := e.initNode(); err != nil {
		return err
	}

	if err := e.initService(); err != nil {
		return err
	}

	return nil
}

func (e *Engine) initKey() error {
	if e.Config.Key != nil {
		return nil
	}

	privKey, err := keys.NewSimpleKeyfile(e.Config.Keyfile()).ReadKey()
	if err != nil {
		if os.IsNotExist(err) {
			e.logger.WithField("path", e.Config.Keyfile()).Info("No validator key, running as a full node")
			return nil
		}
		return err
	}

	e.Config.Key = privKey

	e.logger.WithField("public_key", keys.PublicKeyHex(&privKey.PublicKey)).Debug("Loaded validator key")

	return nil
}

func (e *Engine) initStore() error {
	if !e.Config.Store {
		e.Store = store.NewInmemStore()

		e.logger.Debug("created new in-mem store")

		return nil
	}

	e.logger.WithField("path", e.Config.DatabaseDir).Debug("Attempting to load or create database")

	badgerStore, err := store.NewBadgerStore(e.Config.DatabaseDir, e.logger)
	if err != nil {
		return err
	}

	e.Store = badgerStore

	return nil
}

// initValidators reads validators.json. Without the file, the last validator
// set saved in the store is used, and failing that an empty set.
func (e *Engine) initValidators() error {
	jsonPeerSet := peers.NewJSONPeerSet(e.Config.DataDir)

	validators, err := jsonPeerSet.PeerSet()
	switch {
	case err == nil:
		if err := e.Store.SetValidatorSet(validators); err != nil {
			return err
		}
	case os.IsNotExist(err):
		validators, err = e.Store.GetValidatorSet()
		if err != nil {
			if !common.IsStore(err, common.KeyNotFound) {
				return err
			}
			e.logger.WithField("path", jsonPeerSet.Path()).Warn("No validator set, every peer is a full node")
			validators = peers.NewPeerSet(nil)
		}
	default:
		return err
	}

	e.Validators = validators

	e.logger.WithFields(logrus.Fields{
		"validators": validators.Len(),
		"hash":       validators.Hex(),
	}).Debug("Validator set")

	return nil
}

func (e *Engine) initTransport() error {
	if e.Transport != nil {
		return nil
	}

	if e.Config.NodeKey == nil {
		nodeKey, created, err := keys.LoadOrCreateNodeKey(keys.NewSimpleKeyfile(e.Config.NodeKeyfile()))
		if err != nil {
			return err
		}
		if created {
			e.logger.WithField("path", e.Config.NodeKeyfile()).Info("Created a new node key")
		}
		e.Config.NodeKey = nodeKey
	}

	trans, err := net.NewLibP2PTransport(net.LibP2PConfig{
		Key:         e.Config.NodeKey,
		ListenAddrs: e.Config.ListenAddrs,
		Protocol:    e.Config.Protocol,
		UserAgent:   "valproof/" + version.Version,
		ConnLow:     e.Config.ConnLow,
		ConnHigh:    e.Config.ConnHigh,
		GracePeriod: e.Config.ConnGrace,
	}, e.logger.WithField("prefix", "net"))
	if err != nil {
		return err
	}

	e.Transport = trans

	e.logger.WithFields(logrus.Fields{
		"peer_id": trans.LocalPeer(),
		"addrs":   trans.LocalAddrs(),
	}).Info("Listening")

	return nil
}

// initProof loads our proof from the store, or signs and stores a new one. A
// stored proof is only reused if it binds our current keys.
func (e *Engine) initProof() error {
	if e.Config.Key == nil {
		return nil
	}

	local := e.Transport.LocalPeer()

	stored, err := e.Store.GetProof()
	switch {
	case err == nil:
		if proofMatches(stored, e.Config.Key, local) {
			e.proof = stored
			e.logger.Debug("Loaded proof from store")
			return nil
		}
		e.logger.Warn("Stored proof does not match our keys, signing a new one")
	case !common.IsStore(err, common.KeyNotFound):
		return err
	}

	signed, err := proof.SignBytes(e.Config.Key, local)
	if err != nil {
		return err
	}

	if err := e.Store.SetProof(signed); err != nil {
		return err
	}

	e.proof = signed

	return nil
}

func proofMatches(raw []byte, key *ecdsa.PrivateKey, local peer.ID) bool {
	p, err := proof.Unmarshal(raw)
	if err != nil {
		return false
	}
	return p.Peer() == local &&
		bytes.Equal(keys.FromPublicKey(&key.PublicKey), p.PublicKey) &&
		p.VerifySignature()
}

func (e *Engine) initNode() error {
	e.Registry = prometheus.NewRegistry()
	e.Metrics = metrics.NewRecorder(e.Registry)

	e.Peers = peers.NewStore(e.Validators, e.logger.WithField("prefix", "peers"))
	e.Peers.AddObserver(e.Metrics)
	if o, ok := e.Transport.(peers.Observer); ok {
		e.Peers.AddObserver(o)
	}

	nodeConf := node.NewConfig(
		e.Config.EnableConsensus,
		e.Config.StreamTimeout,
		e.Config.ChannelCapacity,
		e.Config.Moniker,
		e.logger.WithField("prefix", "node"),
	)

	e.Node = node.NewNode(nodeConf, e.Transport, e.Peers, e.Metrics)

	return nil
}

func (e *Engine) initService() error {
	if !e.Config.NoService && e.Config.ServiceAddr != "" {
		e.Service = service.NewService(
			e.Config.ServiceAddr,
			e.Node,
			e.Registry,
			e.logger.WithField("prefix", "service"),
		)
	}
	return nil
}

// Run starts the service, dials the bootstrap peers, and runs the node until
// Shutdown is called.
func (e *Engine) Run() {
	if e.Service != nil {
		go e.Service.Serve()
	}

	e.applyMembership(e.ValidatorSet())

	go e.connectBootstrap()

	e.Node.Run()
}

// RunAsync calls Run in a separate goroutine.
func (e *Engine) RunAsync() {
	go e.Run()
}

func (e *Engine) connectBootstrap() {
	if len(e.Config.BootstrapAddrs) == 0 {
		return
	}

	trans, ok := e.Transport.(*net.LibP2PTransport)
	if !ok {
		e.logger.Warn("Bootstrap addresses are only supported by the libp2p transport")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.Config.StreamTimeout)
	defer cancel()

	for _, addr := range e.Config.BootstrapAddrs {
		if err := trans.Connect(ctx, addr); err != nil {
			e.logger.WithField("addr", addr).WithError(err).Error("Connecting to bootstrap peer")
			continue
		}
		e.logger.WithField("addr", addr).Debug("Connected to bootstrap peer")
	}
}

// SetValidatorSet makes set the active validator set: every known peer is
// reclassified, the set is saved, and we start or stop announcing our proof
// depending on whether our key belongs to it.
func (e *Engine) SetValidatorSet(set *peers.PeerSet) error {
	e.l.Lock()
	e.Validators = set
	e.l.Unlock()

	e.Node.SetValidatorSet(set)
	e.applyMembership(set)

	return e.Store.SetValidatorSet(set)
}

func (e *Engine) applyMembership(set *peers.PeerSet) {
	if e.proof == nil {
		return
	}

	if _, ok := set.Lookup(keys.FromPublicKey(&e.Config.Key.PublicKey)); ok {
		e.logger.Debug("Our key is in the validator set, announcing proof")
		e.Node.SetOurProof(e.proof)
		return
	}

	e.logger.Debug("Our key is not in the validator set")
	e.Node.ClearOurProof()
}

// ValidatorSet returns the active validator set.
func (e *Engine) ValidatorSet() *peers.PeerSet {
	e.l.Lock()
	defer e.l.Unlock()
	return e.Validators
}

// Proof returns our signed proof, or ErrNoValidatorKey.
func (e *Engine) Proof() ([]byte, error) {
	if e.proof == nil {
		return nil, ErrNoValidatorKey
	}
	return e.proof, nil
}

// Shutdown stops the node and closes the service and the store.
func (e *Engine) Shutdown() {
	e.Node.Shutdown()

	if e.Service != nil {
		e.Service.Close()
	}

	if err := e.Store.Close(); err != nil {
		e.logger.WithError(err).Error("Closing store")
	}
}

// Keygen creates a new validator key in datadir. It fails if one already
// exists.
func Keygen(datadir string) (*ecdsa.PrivateKey, error) {
	path := filepath.Join(datadir, config.DefaultKeyfile)

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("Another key already lives under %s", datadir)
	}

	keyfile := keys.NewSimpleKeyfile(path)

	privKey, err := keys.GenerateECDSAKey()
	if err != nil {
		return nil, err
	}

	if err := keyfile.WriteKey(privKey); err != nil {
		return nil, err
	}

	return privKey, nil
}

// SignProof signs a proof binding the validator key to the node key of conf,
// creating the node key if needed, and saves it in the configured store so
// that the node announces it verbatim on every start.
func SignProof(conf *config.Config) ([]byte, peer.ID, error) {
	e := NewEngine(conf)

	if err := e.initKey(); err != nil {
		return nil, "", err
	}
	if conf.Key == nil {
		return nil, "", ErrNoValidatorKey
	}

	nodeKey := conf.NodeKey
	if nodeKey == nil {
		var err error
		nodeKey, _, err = keys.LoadOrCreateNodeKey(keys.NewSimpleKeyfile(conf.NodeKeyfile()))
		if err != nil {
			return nil, "", err
		}
	}

	id, err := keys.PeerID(nodeKey)
	if err != nil {
		return nil, "", err
	}

	signed, err := proof.SignBytes(conf.Key, id)
	if err != nil {
		return nil, "", err
	}

	if err := e.initStore(); err != nil {
		return nil, "", err
	}
	defer e.Store.Close()

	if err := e.Store.SetProof(signed); err != nil {
		return nil, "", err
	}

	return signed, id, nil
}
