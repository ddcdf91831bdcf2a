package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/weavekeeper/internal/logging"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	address string
	handler http.Handler
	logger  logging.Logger
	srv     *http.Server
	ready   chan net.Addr
}

func NewServer(address string, handler http.Handler, l logging.Logger) *Server {
	return &Server{
		address: address,
		handler: handler,
		logger:  l.With("module", "http_server"),
		ready:   make(chan net.Addr, 1),
	}
}

// Ready yields the bound address once the server is listening.
func (s *Server) Ready() <-chan net.Addr {
	return s.ready
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		errCh <- s.srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())
	s.ready <- listen.Addr()

	if err := s.srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-errCh
}
