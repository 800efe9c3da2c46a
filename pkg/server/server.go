package server

import (
	"context"
	"fmt"
	"net/http"

	"emperror.dev/errors"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/voluzi/waitsampler/pkg/collector"
	"github.com/voluzi/waitsampler/pkg/registry"
)

// lookupProcess is swappable so handler tests need no live pids.
var lookupProcess = registry.LookupProcess

// Server exposes the collector's stores over HTTP. All store access
// goes through the read-side snapshots, so handlers never block the
// sampling loop beyond the brief reader-side lock hold.
type Server struct {
	server    *http.Server
	router    *mux.Router
	cfg       *Options
	collector *collector.Collector
}

func New(c *collector.Collector, opts ...Option) *Server {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &Server{
		cfg:       options,
		router:    mux.NewRouter(),
		collector: c,
	}
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	s.router.HandleFunc("/current", s.current).Methods(http.MethodGet)
	s.router.HandleFunc("/history", s.history).Methods(http.MethodGet)
	s.router.HandleFunc("/profile", s.profile).Methods(http.MethodGet)
	s.router.HandleFunc("/profile/reset", s.resetProfile).Methods(http.MethodPost)
	s.router.HandleFunc("/workers", s.workers).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.metrics).Methods(http.MethodGet)
}

// Start blocks serving until Stop is called.
func (s *Server) Start() error {
	s.registerRoutes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler: s.router,
	}
	log.Infof("server started listening on %s:%d ...", s.cfg.Host, s.cfg.Port)
	err := s.server.ListenAndServe()
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return fmt.Errorf("server was not started")
	}
	log.Debug("shutting down http server")
	return s.server.Shutdown(ctx)
}
