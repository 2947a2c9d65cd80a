package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server exposes the status API next to a running crawl.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *zap.Logger
	done       chan struct{}
}

// Listen binds addr without serving yet, so bind errors surface before the crawl starts.
func Listen(addr string, handler http.Handler, logger *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		httpServer: &http.Server{
			Handler:      handler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		listener: ln,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Addr is the address the server is bound to.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	s.logger.Info("Status server listening", zap.String("addr", s.Addr()))
	go func() {
		defer close(s.done)
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server failed", zap.Error(err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return err
}
