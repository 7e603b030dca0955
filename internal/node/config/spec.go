package config

import "time"

// NodeConfig is the root configuration of a framesync node.
type NodeConfig struct {
	Node      NodeSection      `koanf:"node"`
	Server    ServerSection    `koanf:"server"`
	Sync      SyncSection      `koanf:"sync"`
	Security  SecuritySection  `koanf:"security"`
	Discovery DiscoverySection `koanf:"discovery"`
	Metrics   MetricsSection   `koanf:"metrics"`
	Log       LogSection       `koanf:"log"`
}

// NodeSection identifies the node.
type NodeSection struct {
	// ID is this node's cluster-unique name, e.g. "projector-left".
	// If empty, an fsn-{ulid} ID is generated at load time.
	ID string `koanf:"id"`
}

// ServerSection configures the coordinator connection.
type ServerSection struct {
	// Enabled turns synchronization on. Disabled means standalone mode.
	Enabled bool `koanf:"enabled"`

	// Address is the coordinator "host:port". Ignored when discovery is enabled.
	Address string `koanf:"address"`

	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
}

// SyncSection configures the per-frame protocol.
type SyncSection struct {
	// EventTimeout bounds the wait for the Authoritative Event List.
	EventTimeout time.Duration `koanf:"event_timeout"`

	// SwapTimeout bounds the wait for SwapGo.
	SwapTimeout time.Duration `koanf:"swap_timeout"`

	// ReconnectInterval paces background reconnect attempts.
	ReconnectInterval time.Duration `koanf:"reconnect_interval"`
}

// SecuritySection configures cluster authentication.
type SecuritySection struct {
	// ClusterKey keys the handshake MAC. Must match the coordinator's.
	ClusterKey string `koanf:"cluster_key"`
}

// DiscoverySection configures memberlist-based coordinator discovery.
type DiscoverySection struct {
	Enabled  bool     `koanf:"enabled"`
	BindAddr string   `koanf:"bind_addr"`
	BindPort int      `koanf:"bind_port"`
	Seeds    []string `koanf:"seeds"`
}

// MetricsSection configures the optional Prometheus endpoint.
type MetricsSection struct {
	// Addr serves /metrics when non-empty.
	Addr string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
