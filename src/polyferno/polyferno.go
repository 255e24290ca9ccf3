// Package polyferno wires the components of a node together: peers, store,
// transport, node, and HTTP service.
package polyferno

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/polyferno/polyferno/src/config"
	"github.com/polyferno/polyferno/src/net"
	"github.com/polyferno/polyferno/src/node"
	"github.com/polyferno/polyferno/src/peers"
	"github.com/polyferno/polyferno/src/service"
	"github.com/polyferno/polyferno/src/store"
	"github.com/sirupsen/logrus"
)

// Polyferno is a struct containing the key elements of a polyferno node
type Polyferno struct {
	Config    *config.Config
	Node      *node.Node
	Transport net.Transport
	Store     store.Store
	Peers     *peers.PeerSet
	Service   *service.Service
	logger    *logrus.Entry
}

// NewPolyferno is a factory method to produce a Polyferno instance. Peers may
// be set before Init to bypass peers.json.
func NewPolyferno(c *config.Config) *Polyferno {
	engine := &Polyferno{
		Config: c,
		logger: c.Logger(),
	}

	return engine
}

// Init initialises the components in dependency order.
func (p *Polyferno) Init() error {
	p.logger.Debug("validateConfig")
	if err := p.Config.Validate(); err != nil {
		p.logger.WithError(err).Error("polyferno.go:Init() validateConfig")
		return err
	}

	p.logger.Debug("initPeers")
	if err := p.initPeers(); err != nil {
		p.logger.WithError(err).Error("polyferno.go:Init() initPeers")
		return err
	}

	p.logger.Debug("initStore")
	if err := p.initStore(); err != nil {
		p.logger.WithError(err).Error("polyferno.go:Init() initStore")
		return err
	}

	p.logger.Debug("initTransport")
	if err := p.initTransport(); err != nil {
		p.logger.WithError(err).Error("polyferno.go:Init() initTransport")
		return err
	}

	p.logger.Debug("initNode")
	if err := p.initNode(); err != nil {
		p.logger.WithError(err).Error("polyferno.go:Init() initNode")
		return err
	}

	p.logger.Debug("initService")
	if err := p.initService(); err != nil {
		p.logger.WithError(err).Error("polyferno.go:Init() initService")
		return err
	}

	return nil
}

// Run starts the transport, the service, and the node, and submits the model
// file if one is configured. It blocks until the node stops.
func (p *Polyferno) Run() error {
	go p.Transport.Listen()

	if p.Service != nil {
		go p.Service.Serve()
		defer p.Service.Close()
	}

	if p.Config.ModelFile != "" {
		go p.submitModelFile()
	}

	return p.Node.Run()
}

// Shutdown stops the node and the service.
func (p *Polyferno) Shutdown() {
	if p.Service != nil {
		p.Service.Close()
	}
	if p.Node != nil {
		p.Node.Shutdown()
	}
}

func (p *Polyferno) initPeers() error {
	if p.Peers == nil {
		jsonPeerSet := peers.NewJSONPeerSet(p.Config.DataDir)

		peerSet, err := jsonPeerSet.PeerSet()
		if err != nil {
			return err
		}

		p.Peers = peerSet
	}

	if p.Peers.Len() < 2 {
		return fmt.Errorf("peers.json should define at least two peers")
	}

	return p.Peers.Validate()
}

func (p *Polyferno) initStore() error {
	if !p.Config.Store && !p.Config.Bootstrap {
		p.Store = store.NewInmemStore()

		p.logger.Debug("created new in-mem store")

		return nil
	}

	dbPath := p.Config.DatabaseDir

	if !p.Config.Bootstrap {
		// keep an existing database aside rather than mixing rounds
		dbPath = freshPath(dbPath)
	}

	p.logger.WithField("path", dbPath).Debug("Attempting to load or create database")

	badgerStore, err := store.NewBadgerStore(dbPath, p.logger)
	if err != nil {
		return err
	}

	p.Store = badgerStore

	return nil
}

// freshPath returns path, or path(i) with the smallest i such that nothing
// exists there yet.
func freshPath(path string) string {
	res := path
	for i := 1; ; i++ {
		if _, err := os.Stat(res); os.IsNotExist(err) {
			return res
		}
		res = fmt.Sprintf("%s(%d)", path, i)
	}
}

func (p *Polyferno) initTransport() error {
	limits := p.Config.Limits(p.Peers.Len())

	switch p.Config.Transport {
	case config.TransportZMQ:
		transport, err := net.NewZmqTransport(
			fmt.Sprintf("polyferno-%d", p.Config.ID),
			p.Config.BindAddr,
			p.Config.AdvertiseAddr,
			p.Config.QueueSize,
			limits,
			p.logger,
		)
		if err != nil {
			return err
		}
		p.Transport = transport
	default:
		transport, err := net.NewTCPTransport(
			p.Config.BindAddr,
			p.Config.AdvertiseAddr,
			p.Config.MaxPool,
			p.Config.QueueSize,
			p.Config.TCPTimeout,
			limits,
			p.logger,
		)
		if err != nil {
			return err
		}
		p.Transport = transport
	}

	return nil
}

func (p *Polyferno) initNode() error {
	id := net.NodeID(p.Config.ID)

	p.logger.WithFields(logrus.Fields{
		"peers":     p.Peers.Peers,
		"id":        id,
		"neighbors": p.Config.Neighbors,
	}).Debug("PARTICIPANTS")

	n, err := node.NewNode(
		p.Config,
		id,
		p.Peers,
		p.Store,
		p.Transport,
		nil,
	)
	if err != nil {
		return err
	}

	if err := n.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	p.Node = n

	return nil
}

func (p *Polyferno) initService() error {
	if !p.Config.NoService && p.Config.ServiceAddr != "" {
		p.Service = service.NewService(p.Config.ServiceAddr, p.Node, p.logger)
	}
	return nil
}

// submitModelFile submits the configured model file for the current round.
func (p *Polyferno) submitModelFile() {
	model, err := ioutil.ReadFile(p.Config.ModelFile)
	if err != nil {
		p.logger.WithError(err).Error("Reading model file")
		return
	}

	round, _ := p.Node.GetInbox()

	if err := p.Node.Submit(round, model); err != nil {
		p.logger.WithError(err).Error("Submitting model file")
		return
	}

	p.logger.WithFields(logrus.Fields{
		"file":  p.Config.ModelFile,
		"round": round,
		"size":  len(model),
	}).Info("Submitted model file")
}
