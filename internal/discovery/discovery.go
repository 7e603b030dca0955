package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/memberlist"

	"github.com/yndnr/framesync-go/internal/core/domain"
)

// Role is what a gossip member does in the cluster.
type Role string

const (
	RoleCoordinator Role = "coordinator"
	RoleNode        Role = "node"
)

// Config configures discovery.
type Config struct {
	// Name is the unique gossip member name.
	Name string
	Role Role

	BindAddr string
	BindPort int

	// SyncAddr is advertised by the coordinator: the host:port nodes dial.
	SyncAddr string

	// Seeds are gossip addresses (host:port) of existing members.
	Seeds []string

	Logger *slog.Logger
}

// Member is one gossip member.
type Member struct {
	Name       string `json:"name" yaml:"name"`
	Role       Role   `json:"role" yaml:"role"`
	GossipAddr string `json:"gossip_addr" yaml:"gossip_addr"`
	SyncAddr   string `json:"sync_addr,omitempty" yaml:"sync_addr,omitempty"`
}

type nodeMetadata struct {
	Role     Role   `json:"role"`
	SyncAddr string `json:"sync_addr,omitempty"`
}

// Discovery is a gossip pool membership.
type Discovery struct {
	ml     *memberlist.Memberlist
	logger *slog.Logger

	mu       sync.Mutex
	shutdown bool
	onChange func()
}

// New creates the local member and joins cfg.Seeds. With no seeds the
// member starts a new pool.
func New(cfg Config) (*Discovery, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Name == "" {
		return nil, domain.ErrInvalidConfig.WithDetails("discovery: name is required")
	}
	if cfg.Role == RoleCoordinator && cfg.SyncAddr == "" {
		return nil, domain.ErrInvalidConfig.WithDetails("discovery: coordinator must advertise a sync address")
	}

	meta, err := json.Marshal(nodeMetadata{Role: cfg.Role, SyncAddr: cfg.SyncAddr})
	if err != nil {
		return nil, fmt.Errorf("discovery: encode metadata: %w", err)
	}

	d := &Discovery{logger: cfg.Logger.With("component", "discovery")}

	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = cfg.Name
	mlConfig.BindAddr = cfg.BindAddr
	mlConfig.BindPort = cfg.BindPort
	// Equal ports let memberlist advertise the auto-bound port when BindPort is 0.
	mlConfig.AdvertisePort = cfg.BindPort
	mlConfig.Delegate = &metadataDelegate{meta: meta}
	mlConfig.Events = &eventDelegate{discovery: d}
	mlConfig.LogOutput = &slogWriter{logger: d.logger}

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("discovery: create memberlist: %w", err)
	}
	d.ml = ml

	if len(cfg.Seeds) > 0 {
		n, err := ml.Join(cfg.Seeds)
		if err != nil {
			ml.Shutdown()
			return nil, fmt.Errorf("discovery: join %v: %w", cfg.Seeds, err)
		}
		d.logger.Info("joined gossip pool",
			"name", cfg.Name,
			"role", string(cfg.Role),
			"seeds", cfg.Seeds,
			"joined_count", n)
	} else {
		d.logger.Info("started gossip pool",
			"name", cfg.Name,
			"role", string(cfg.Role))
	}
	return d, nil
}

// OnChange registers fn to run after any membership change.
func (d *Discovery) OnChange(fn func()) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

// GossipAddr returns the local gossip address.
func (d *Discovery) GossipAddr() string {
	n := d.ml.LocalNode()
	return net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port)))
}

// Members returns all live members sorted by name.
func (d *Discovery) Members() []Member {
	nodes := d.ml.Members()
	out := make([]Member, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, toMember(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Coordinators returns live coordinator members sorted by name.
func (d *Discovery) Coordinators() []Member {
	var out []Member
	for _, m := range d.Members() {
		if m.Role == RoleCoordinator && m.SyncAddr != "" {
			out = append(out, m)
		}
	}
	return out
}

// Resolve returns the sync address of the first live coordinator.
// Its signature matches synchronizer.Resolver.
func (d *Discovery) Resolve(context.Context) (string, error) {
	cs := d.Coordinators()
	if len(cs) == 0 {
		return "", domain.ErrServerUnavailable.WithDetails("no coordinator in gossip pool")
	}
	if len(cs) > 1 {
		d.logger.Warn("multiple coordinators advertised, using first",
			"using", cs[0].Name,
			"count", len(cs))
	}
	return cs[0].SyncAddr, nil
}

// Close leaves the pool and shuts the member down.
func (d *Discovery) Close() error {
	d.mu.Lock()
	if d.shutdown {
		d.mu.Unlock()
		return nil
	}
	d.shutdown = true
	d.mu.Unlock()

	if err := d.ml.Leave(0); err != nil {
		d.logger.Warn("leave gossip pool failed", "error", err)
	}
	if err := d.ml.Shutdown(); err != nil {
		return fmt.Errorf("discovery: shutdown: %w", err)
	}
	d.logger.Info("discovery shut down")
	return nil
}

func (d *Discovery) changed() {
	d.mu.Lock()
	fn := d.onChange
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func toMember(n *memberlist.Node) Member {
	m := Member{
		Name:       n.Name,
		GossipAddr: net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port))),
	}
	var meta nodeMetadata
	if err := json.Unmarshal(n.Meta, &meta); err == nil {
		m.Role = meta.Role
		m.SyncAddr = meta.SyncAddr
	}
	return m
}

// eventDelegate implements memberlist.EventDelegate.
type eventDelegate struct {
	discovery *Discovery
}

func (e *eventDelegate) NotifyJoin(n *memberlist.Node) {
	m := toMember(n)
	e.discovery.logger.Info("member joined",
		"name", m.Name,
		"role", string(m.Role),
		"gossip_addr", m.GossipAddr,
		"sync_addr", m.SyncAddr)
	e.discovery.changed()
}

func (e *eventDelegate) NotifyLeave(n *memberlist.Node) {
	e.discovery.logger.Info("member left", "name", n.Name)
	e.discovery.changed()
}

func (e *eventDelegate) NotifyUpdate(n *memberlist.Node) {
	e.discovery.logger.Debug("member updated", "name", n.Name)
	e.discovery.changed()
}

// slogWriter adapts slog.Logger to io.Writer for memberlist.
type slogWriter struct {
	logger *slog.Logger
}

func (w *slogWriter) Write(p []byte) (int, error) {
	w.logger.Debug(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// metadataDelegate publishes the local member's role and sync address.
type metadataDelegate struct {
	meta []byte
}

func (m *metadataDelegate) NodeMeta(limit int) []byte {
	if len(m.meta) > limit {
		return m.meta[:limit]
	}
	return m.meta
}

func (m *metadataDelegate) NotifyMsg([]byte) {}

func (m *metadataDelegate) GetBroadcasts(overhead, limit int) [][]byte { return nil }

func (m *metadataDelegate) LocalState(join bool) []byte { return nil }

func (m *metadataDelegate) MergeRemoteState(buf []byte, join bool) {}
