package adminserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/framesync-go/internal/infra/buildinfo"
	"github.com/yndnr/framesync-go/internal/server/registry"
	"github.com/yndnr/framesync-go/internal/telemetry/metric"
)

// Source provides the coordinator state. *coordinator.Server implements it.
type Source interface {
	Status() registry.Status
	Addr() net.Addr
}

// Server is the admin HTTP server.
type Server struct {
	addr       string
	source     Source
	logger     *slog.Logger
	startedAt  time.Time
	httpServer *http.Server
	ln         net.Listener
}

// New creates an admin server. reg may be nil to omit /metrics.
func New(addr string, source Source, reg *prometheus.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:      addr,
		source:    source,
		logger:    logger.With("component", "adminserver"),
		startedAt: time.Now(),
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler builds the admin mux.
func (s *Server) Handler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()

	mux.Handle(StatusProcedure, connect.NewUnaryHandler(
		StatusProcedure,
		s.status,
		connect.WithCodec(JSONCodec{}),
		connect.WithInterceptors(NewLoggingInterceptor(s.logger)),
	))
	if reg != nil {
		mux.Handle("/metrics", metric.Handler(reg))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

func (s *Server) status(_ context.Context, _ *connect.Request[StatusRequest]) (*connect.Response[StatusResponse], error) {
	if s.source == nil {
		return nil, connect.NewError(connect.CodeUnavailable, errors.New("coordinator not running"))
	}

	resp := &StatusResponse{
		Build:     buildinfo.Get(),
		StartedAt: s.startedAt,
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
		Registry:  s.source.Status(),
	}
	if addr := s.source.Addr(); addr != nil {
		resp.SyncAddr = addr.String()
	}
	return connect.NewResponse(resp), nil
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("adminserver: listen %s: %w", s.addr, err)
	}
	s.ln = ln

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin server failed", "error", err)
		}
	}()

	s.logger.Info("admin server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
