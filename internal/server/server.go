package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/openstore/openstore/internal/api"
	"github.com/openstore/openstore/internal/metric"
	"github.com/openstore/openstore/internal/store"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Server struct {
	api    *api.Handler
	assets string
	logger *zap.Logger
	metric *metric.RegistryMetrics
	mux    *mux.Router
	server *http.Server
	store  store.Store
}

type ServerConfig struct {
	API    *api.Handler
	Logger *zap.Logger
	Metric *metric.RegistryMetrics
	Store  store.Store

	// AssetsDir is served under /assets/ when set, for the local driver.
	AssetsDir string
}

func NewServer(cfg *ServerConfig) *Server {
	s := &Server{
		api:    cfg.API,
		assets: cfg.AssetsDir,
		logger: cfg.Logger,
		metric: cfg.Metric,
		mux:    mux.NewRouter(),
		store:  cfg.Store,
	}

	s.metric.RegisterAllMetrics()

	s.registerCatalogHandler()
	s.registerManageHandler()
	s.registerAssetHandler()
	s.registerUtilHandler()
	s.registerMetricsHandler()

	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Serve(ctx context.Context, conn net.Listener) error {
	server := &http.Server{
		// Uploads can take a while, the pipeline bounds its own steps.
		WriteTimeout: time.Minute * 10,
		ReadTimeout:  time.Minute * 10,
		IdleTimeout:  time.Second * 60,
		Handler:      s.mux,
	}

	s.metric.Resync(ctx)
	s.server = server
	if err := server.Serve(conn); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
