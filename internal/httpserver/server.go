// Package httpserver wraps the standard HTTP server with the gateway's
// timeouts and lifecycle.
package httpserver

import (
	"context"
	"net/http"

	"github.com/R3E-Network/origin-gateway/internal/config"
	"github.com/R3E-Network/origin-gateway/internal/logging"
)

type Server struct {
	srv *http.Server
	log *logging.Logger
}

func New(cfg config.ServerConfig, log *logging.Logger, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Start blocks serving requests until Shutdown is called or the listener
// fails. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.log.WithField("addr", s.srv.Addr).Info("http server listening")
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
