package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	logpkg "github.com/haukened/hostguard/internal/guard/common/log"
)

const shutdownTimeout = 5 * time.Second

// Server runs the API until its context is cancelled.
type Server struct {
	srv    *http.Server
	logger logpkg.Logger
}

// NewServer wraps handler in an http.Server bound to addr.
func NewServer(addr string, handler http.Handler, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = logpkg.NewNoopLogger()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run listens on the configured address and blocks until ctx is done, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(map[string]any{"addr": ln.Addr().String()}, "api_listening")
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(sctx); err != nil {
		return err
	}
	s.logger.Info(map[string]any{}, "api_stopped")
	return nil
}
