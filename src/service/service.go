package service

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"strconv"
	"sync"

	"github.com/polyferno/polyferno/src/common"
	"github.com/polyferno/polyferno/src/export"
	"github.com/polyferno/polyferno/src/net"
	"github.com/polyferno/polyferno/src/node"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Service ...
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	mux         *http.ServeMux
	server      *http.Server
	closed      bool
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the service's own mux, so
// that several nodes can live in the same process.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering polyferno API handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/peers", s.makeHandler(s.GetPeers))
	s.mux.HandleFunc("/neighbors", s.makeHandler(s.GetNeighbors))
	s.mux.HandleFunc("/inbox", s.makeHandler(s.GetInbox))
	s.mux.HandleFunc("/inbox.arrow", s.makeHandler(s.GetInboxArrow))
	s.mux.HandleFunc("/model", s.makeHandler(s.PostModel))
	s.mux.Handle("/metrics", promhttp.Handler())
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

// Handler returns the handler serving the API.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call that returns when the
// service is closed.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving polyferno API")

	s.Lock()
	if s.closed {
		s.Unlock()
		return
	}
	s.server = &http.Server{
		Addr:    s.bindAddress,
		Handler: s.mux,
	}
	server := s.server
	s.Unlock()

	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error(err)
	}
}

// Close stops the server started by Serve.
func (s *Service) Close() error {
	s.Lock()
	defer s.Unlock()

	s.closed = true
	if s.server == nil {
		return nil
	}
	return s.server.Close()
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.node.GetPeers())
}

// GetNeighbors returns the neighbors and what they are known to hold.
func (s *Service) GetNeighbors(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.node.GetNeighbors())
}

// InboxInfo lists the size of every model held for the round.
type InboxInfo struct {
	Round  uint64
	Models map[string]int
}

// GetInbox ...
func (s *Service) GetInbox(w http.ResponseWriter, r *http.Request) {
	round, inbox := s.node.GetInbox()

	res := InboxInfo{
		Round:  uint64(round),
		Models: make(map[string]int, len(inbox)),
	}
	for o, m := range inbox {
		res.Models[o.String()] = len(m)
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(res)
}

// GetInboxArrow streams the models of the inbox in the Arrow IPC format.
func (s *Service) GetInboxArrow(w http.ResponseWriter, r *http.Request) {
	round, inbox := s.node.GetInbox()

	data, err := export.SerializeInbox(round, inbox)
	if err != nil {
		s.logger.WithError(err).Error("Exporting inbox")

		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/vnd.apache.arrow.stream")

	w.Write(data)
}

// SubmitResult is the reply to a model submission.
type SubmitResult struct {
	Round uint64
	Size  int
}

// PostModel submits the request body as the local model for the round given
// by the round query parameter.
func (s *Service) PostModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	param := r.URL.Query().Get("round")

	round, err := strconv.ParseUint(param, 10, 64)
	if err != nil {
		s.logger.WithError(err).Errorf("Parsing round parameter %s", param)

		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	limit := int64(s.node.Limits().ModelSize)
	model, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		s.logger.WithError(err).Error("Reading model")

		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)

		return
	}

	err = s.node.Submit(net.RoundID(round), model)

	switch {
	case err == nil:
	case common.IsGossip(err, common.CapacityExceeded):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	case errors.Is(err, node.ErrNodeShutdown):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	default:
		s.logger.WithError(err).Errorf("Submitting model for round %d", round)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(SubmitResult{
		Round: round,
		Size:  len(model),
	})
}
