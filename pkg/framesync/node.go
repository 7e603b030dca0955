package framesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/framesync-go/internal/core/domain"
	"github.com/yndnr/framesync-go/internal/discovery"
	"github.com/yndnr/framesync-go/internal/node/config"
	"github.com/yndnr/framesync-go/internal/node/synchronizer"
	"github.com/yndnr/framesync-go/internal/node/transport"
	"github.com/yndnr/framesync-go/internal/telemetry/metric"
)

// Option configures a Node.
type Option func(*Node)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithRegistry registers node metrics with reg instead of a private
// registry. metrics.addr still controls whether they are served.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(n *Node) {
		n.reg = reg
	}
}

// Stats is a snapshot of node counters.
type Stats struct {
	synchronizer.Stats

	// Violations counts inbound frames the transport discarded.
	Violations uint64
}

// Node is one framesync node.
type Node struct {
	cfg     *config.NodeConfig
	logger  *slog.Logger
	reg     *prometheus.Registry
	metrics *metric.NodeMetrics

	tr   *transport.Transport
	sync *synchronizer.Synchronizer

	mu          sync.Mutex
	disc        *discovery.Discovery
	metricsSrv  *http.Server
	metricsAddr net.Addr
	stopWatch   func() error
	closed      bool
}

// Open loads the configuration at path (empty for defaults and the
// environment only), applies overrides and creates the node.
func Open(path string, overrides map[string]any, opts ...Option) (*Node, error) {
	cfg, err := config.Load(path, overrides)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// New creates a node from a verified configuration. Nothing touches
// the network until Start.
func New(cfg *config.NodeConfig, opts ...Option) (*Node, error) {
	if cfg == nil {
		return nil, domain.ErrInvalidConfig.WithDetails("nil config")
	}
	if cfg.Node.ID == "" {
		return nil, domain.ErrInvalidConfig.WithDetails("node.id is required")
	}
	if err := config.Verify(cfg); err != nil {
		return nil, err
	}

	n := &Node{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.reg == nil {
		n.reg = metric.NewRegistry()
	}
	n.metrics = metric.NewNodeMetrics(n.reg)

	var tr synchronizer.Transport
	if cfg.Server.Enabled {
		var key []byte
		if cfg.Security.ClusterKey != "" {
			key = []byte(cfg.Security.ClusterKey)
		}
		n.tr = transport.New(transport.Config{
			NodeID:         cfg.Node.ID,
			ClusterKey:     key,
			ConnectTimeout: cfg.Server.ConnectTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
		},
			transport.WithLogger(n.logger),
			transport.WithViolationHook(func(error) { n.metrics.ProtocolViolation() }),
		)
		tr = n.tr
	}

	s, err := synchronizer.New(synchronizer.Config{
		NodeID:            cfg.Node.ID,
		Enabled:           cfg.Server.Enabled,
		EventTimeout:      cfg.Sync.EventTimeout,
		SwapTimeout:       cfg.Sync.SwapTimeout,
		ReconnectInterval: cfg.Sync.ReconnectInterval,
	}, tr,
		synchronizer.WithLogger(n.logger),
		synchronizer.WithMetrics(n.metrics),
		synchronizer.WithResolver(n.resolve),
	)
	if err != nil {
		return nil, err
	}
	n.sync = s
	return n, nil
}

// Start joins discovery when enabled, serves metrics when configured
// and makes the first connection attempt. An unreachable coordinator
// is not an error.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return domain.ErrShutdown
	}
	if err := n.startDiscovery(); err != nil {
		n.mu.Unlock()
		return err
	}
	if err := n.startMetrics(); err != nil {
		n.mu.Unlock()
		return err
	}
	n.mu.Unlock()

	n.logger.Info("starting framesync node",
		"node_id", n.cfg.Node.ID,
		"enabled", n.cfg.Server.Enabled,
		"discovery", n.cfg.Discovery.Enabled,
		"event_timeout", n.cfg.Sync.EventTimeout,
		"swap_timeout", n.cfg.Sync.SwapTimeout,
	)
	return n.sync.Start(ctx)
}

func (n *Node) startDiscovery() error {
	if !n.cfg.Server.Enabled || !n.cfg.Discovery.Enabled || n.disc != nil {
		return nil
	}
	d, err := discovery.New(discovery.Config{
		Name:     n.cfg.Node.ID,
		Role:     discovery.RoleNode,
		BindAddr: n.cfg.Discovery.BindAddr,
		BindPort: n.cfg.Discovery.BindPort,
		Seeds:    n.cfg.Discovery.Seeds,
		Logger:   n.logger,
	})
	if err != nil {
		return err
	}
	d.OnChange(func() {
		n.logger.Debug("gossip membership changed", "coordinators", len(d.Coordinators()))
	})
	n.disc = d
	return nil
}

func (n *Node) startMetrics() error {
	if n.cfg.Metrics.Addr == "" || n.metricsSrv != nil {
		return nil
	}
	ln, err := net.Listen("tcp", n.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", n.cfg.Metrics.Addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metric.Handler(n.reg))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.logger.Error("metrics server error", "error", err)
		}
	}()

	n.metricsSrv = srv
	n.metricsAddr = ln.Addr()
	n.logger.Info("metrics listening", "addr", ln.Addr().String())
	return nil
}

// resolve returns the coordinator address, from discovery when enabled.
func (n *Node) resolve(ctx context.Context) (string, error) {
	n.mu.Lock()
	d := n.disc
	n.mu.Unlock()

	if d != nil {
		return d.Resolve(ctx)
	}
	if n.cfg.Discovery.Enabled {
		return "", domain.ErrServerUnavailable.WithDetails("discovery not started")
	}
	return n.cfg.Server.Address, nil
}

// OnFrameBegin runs the event phase and returns this frame's events.
// Listeners have already seen every returned event when it returns.
func (n *Node) OnFrameBegin(ctx context.Context) ([]Event, error) {
	return n.sync.OnFrameBegin(ctx)
}

// OnRenderComplete runs the swap barrier and advances the round.
func (n *Node) OnRenderComplete(ctx context.Context) error {
	return n.sync.OnRenderComplete(ctx)
}

// Publish queues events for the next frame without blocking.
func (n *Node) Publish(events ...Event) error {
	return n.sync.Publish(events...)
}

// Subscribe registers fn for delivered events.
func (n *Node) Subscribe(fn Listener) *Subscription {
	return n.sync.Subscribe(fn)
}

// ID returns the node ID.
func (n *Node) ID() string { return n.cfg.Node.ID }

// Round returns the current frame round.
func (n *Node) Round() Round { return n.sync.Round() }

// Phase returns the current lifecycle phase.
func (n *Node) Phase() Phase { return n.sync.Phase() }

// State returns the coordinator connection state.
func (n *Node) State() ConnState { return n.sync.State() }

// Stats returns a snapshot of node counters.
func (n *Node) Stats() Stats {
	st := Stats{Stats: n.sync.Stats()}
	if n.tr != nil {
		st.Violations = n.tr.Violations()
	}
	return st
}

// MetricsAddr returns the bound metrics address, or nil when metrics
// are not served.
func (n *Node) MetricsAddr() net.Addr {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.metricsAddr
}

// Registry returns the registry holding the node metrics.
func (n *Node) Registry() *prometheus.Registry { return n.reg }

// Close stops the node. Pending hooks return promptly and later calls
// fail with ErrShutdown.
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	disc, srv, stopWatch := n.disc, n.metricsSrv, n.stopWatch
	n.mu.Unlock()

	var errs []error
	if stopWatch != nil {
		errs = append(errs, stopWatch())
	}
	errs = append(errs, n.sync.Close())
	if disc != nil {
		errs = append(errs, disc.Close())
	}
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		errs = append(errs, srv.Shutdown(ctx))
		cancel()
	}
	n.logger.Info("framesync node stopped", "node_id", n.cfg.Node.ID, "rounds", n.sync.Stats().Rounds)
	return errors.Join(errs...)
}
