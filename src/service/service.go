package service

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	cm "github.com/mosaicnetworks/spantree/src/common"
	"github.com/mosaicnetworks/spantree/src/node"
	"github.com/mosaicnetworks/spantree/src/telemetry"
	"github.com/sirupsen/logrus"
)

// Service exposes the state of a node over HTTP.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	graph       *node.Graph
	mux         *http.ServeMux
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		graph:       node.NewGraph(n),
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering API handlers")
	s.mux.Handle("/stats", s.makeHandler("stats", s.GetStats))
	s.mux.Handle("/tree", s.makeHandler("tree", s.GetTree))
	s.mux.Handle("/rounds/", s.makeHandler("round", s.GetRound))
	s.mux.Handle("/graph", s.makeHandler("graph", s.GetGraph))
	s.mux.Handle("/peers", s.makeHandler("peers", s.GetPeers))
	s.mux.Handle("/metrics", telemetry.MetricsHandler())
}

func (s *Service) makeHandler(op string, fn func(http.ResponseWriter, *http.Request)) http.Handler {
	return telemetry.Instrument(op, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}))
}

// Handler returns the service's request multiplexer.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving API")

	err := http.ListenAndServe(s.bindAddress, s.mux)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetTree ...
func (s *Service) GetTree(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.node.Tree())
}

// GetRound ...
func (s *Service) GetRound(w http.ResponseWriter, r *http.Request) {
	param := r.URL.Path[len("/rounds/"):]

	roundIndex, err := strconv.Atoi(param)

	if err != nil {
		s.logger.WithError(err).Errorf("Parsing round_index parameter %s", param)

		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	round, err := s.node.GetRound(roundIndex)

	if err != nil {
		s.logger.WithError(err).Debugf("Retrieving round %d", roundIndex)

		status := http.StatusInternalServerError
		if cm.IsStore(err, cm.KeyNotFound) ||
			cm.IsStore(err, cm.Empty) ||
			cm.IsStore(err, cm.TooLate) {
			status = http.StatusNotFound
		}

		http.Error(w, err.Error(), status)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(round)
}

// GetGraph ...
func (s *Service) GetGraph(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.graph.GetInfos())
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.node.GetPeers())
}
