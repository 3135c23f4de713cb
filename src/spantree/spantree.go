// Package spantree wires a spantree process together from a Config: the
// peer-set, the round history store, the transport, the node and the HTTP
// service.
package spantree

import (
	"fmt"

	"github.com/mosaicnetworks/spantree/src/config"
	"github.com/mosaicnetworks/spantree/src/dummy"
	"github.com/mosaicnetworks/spantree/src/history"
	"github.com/mosaicnetworks/spantree/src/net"
	"github.com/mosaicnetworks/spantree/src/node"
	"github.com/mosaicnetworks/spantree/src/peers"
	"github.com/mosaicnetworks/spantree/src/service"
	"github.com/mosaicnetworks/spantree/src/telemetry"
	"github.com/mosaicnetworks/spantree/src/vector"
	"github.com/mosaicnetworks/spantree/src/version"
	"github.com/sirupsen/logrus"
)

// Spantree is a struct containing the key objects of a process
type Spantree struct {
	Config    *config.Config
	Node      *node.Node
	Transport net.Transport
	Store     history.Store
	Peers     *peers.PeerSet
	Service   *service.Service
	Workload  *dummy.Workload
	logger    *logrus.Entry
}

// NewSpantree is a factory method to produce a Spantree instance.
func NewSpantree(c *config.Config) *Spantree {
	engine := &Spantree{
		Config: c,
		logger: c.Logger(),
	}

	return engine
}

// Init initialises the engine based on its configuration. It reads the
// peer-set from the datadir, opens the store and the transport, and prepares
// the node.
func (s *Spantree) Init() error {
	s.logger.Debug("validateConfig")
	if err := s.validateConfig(); err != nil {
		s.logger.WithError(err).Error("validateConfig")
		return err
	}

	s.logger.Debug("initPeers")
	if err := s.initPeers(); err != nil {
		s.logger.WithError(err).Error("initPeers")
		return err
	}

	s.logger.Debug("initStore")
	if err := s.initStore(); err != nil {
		s.logger.WithError(err).Error("initStore")
		return err
	}

	s.logger.Debug("initTransport")
	if err := s.initTransport(); err != nil {
		s.logger.WithError(err).Error("initTransport")
		return err
	}

	s.logger.Debug("initNode")
	if err := s.initNode(); err != nil {
		s.logger.WithError(err).Error("initNode")
		return err
	}

	s.logger.Debug("initService")
	if err := s.initService(); err != nil {
		s.logger.WithError(err).Error("initService")
		return err
	}

	telemetry.SetBuildInfo(version.Version)

	return nil
}

// Run starts the service, the workload and the node. It blocks until the node
// is shut down.
func (s *Spantree) Run() {
	s.start()
	s.Node.Run()
}

// RunAsync starts the node in the background.
func (s *Spantree) RunAsync() {
	s.start()
	s.Node.RunAsync()
}

// Shutdown stops the workload and the node, and closes the transport and the
// store.
func (s *Spantree) Shutdown() {
	if s.Workload != nil {
		s.Workload.Stop()
	}
	if s.Node != nil {
		s.Node.Shutdown()
	}
}

func (s *Spantree) start() {
	if s.Service != nil {
		go s.Service.Serve()
	}
	s.Workload.Start()
}

func (s *Spantree) validateConfig() error {
	if s.Config.InboxSize <= 0 {
		return fmt.Errorf("inbox-size must be positive, got %d", s.Config.InboxSize)
	}

	if s.Config.CacheSize <= 0 {
		return fmt.Errorf("cache-size must be positive, got %d", s.Config.CacheSize)
	}

	s.logger.WithFields(logrus.Fields{
		"spantree.DataDir":       s.Config.DataDir,
		"spantree.ID":            s.Config.ID,
		"spantree.BindAddr":      s.Config.BindAddr,
		"spantree.AdvertiseAddr": s.Config.AdvertiseAddr,
		"spantree.ServiceAddr":   s.Config.ServiceAddr,
		"spantree.NoService":     s.Config.NoService,
		"spantree.RootID":        s.Config.RootID,
		"spantree.RoundInterval": s.Config.RoundInterval,
		"spantree.MaxRounds":     s.Config.MaxRounds,
		"spantree.Store":         s.Config.Store,
		"spantree.PredicateSkip": s.Config.PredicateSkip,
		"spantree.ActiveFor":     s.Config.ActiveFor,
	}).Debug("Config")

	return nil
}

func (s *Spantree) initPeers() error {
	peerStore := peers.NewJSONPeerSet(s.Config.DataDir)

	peerSet, err := peerStore.PeerSet()
	if err != nil {
		return err
	}

	if peerSet == nil || peerSet.Len() == 0 {
		return fmt.Errorf("peers.json should define at least one peer")
	}

	if err := peerSet.Validate(); err != nil {
		return err
	}

	if !peerSet.Connected(s.Config.RootID) {
		return fmt.Errorf("peers.json does not describe a connected graph")
	}

	if _, ok := peerSet.ByID[s.Config.ID]; !ok {
		return fmt.Errorf("cannot find id %d in peers.json", s.Config.ID)
	}

	s.Peers = peerSet

	return nil
}

func (s *Spantree) initStore() error {
	if !s.Config.Store {
		s.logger.Debug("Creating InmemStore")
		s.Store = history.NewInmemStore(s.Config.CacheSize)
		return nil
	}

	s.logger.WithField("path", s.Config.DatabaseDir).Debug("Opening BadgerStore")

	store, err := history.NewBadgerStore(s.Config.CacheSize, s.Config.DatabaseDir, s.logger)
	if err != nil {
		return err
	}

	s.logger.WithField("last_round", store.LastRound()).Debug("BadgerStore opened")

	s.Store = store

	return nil
}

func (s *Spantree) initTransport() error {
	trans, err := net.NewTCPTransport(
		s.Config.BindAddr,
		s.Config.AdvertiseAddr,
		s.Config.MaxPool,
		s.Config.TCPTimeout,
		s.logger,
	)
	if err != nil {
		return err
	}

	go trans.Listen()

	s.Transport = trans

	return nil
}

func (s *Spantree) initNode() error {
	s.Workload = dummy.NewWorkload(s.Config.ID, s.Config.ActiveFor, s.logger)

	predicate := vector.AllQuiescent(s.Config.PredicateSkip)

	n, err := node.NewNode(
		s.Config.NodeConfig(),
		s.Config.ID,
		s.Peers,
		s.Store,
		s.Transport,
		s.Workload.Recorder(),
		predicate,
	)
	if err != nil {
		return err
	}

	if err := n.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	s.Node = n

	return nil
}

func (s *Spantree) initService() error {
	if !s.Config.NoService {
		s.Service = service.NewService(s.Config.ServiceAddr, s.Node, s.logger)
	}
	return nil
}
