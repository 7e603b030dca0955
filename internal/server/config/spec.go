package config

import "time"

// ServerConfig is the root configuration of framesync-server.
type ServerConfig struct {
	Server    ServerSection    `koanf:"server"`
	Rounds    RoundsSection    `koanf:"rounds"`
	Journal   JournalSection   `koanf:"journal"`
	Security  SecuritySection  `koanf:"security"`
	Discovery DiscoverySection `koanf:"discovery"`
	Log       LogSection       `koanf:"log"`
}

// ServerSection configures the coordinator endpoints.
type ServerSection struct {
	// Name is the gossip member name. Generated when empty.
	Name string `koanf:"name"`

	Sync  SyncConfig  `koanf:"sync"`
	Admin AdminConfig `koanf:"admin"`
}

// SyncConfig configures the node-facing sync listener.
type SyncConfig struct {
	Addr string `koanf:"addr"`

	// AdvertiseAddr is published through discovery. Defaults to Addr,
	// which must then name a concrete host.
	AdvertiseAddr string `koanf:"advertise_addr"`

	IdleTimeout      time.Duration `koanf:"idle_timeout"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	WriteTimeout     time.Duration `koanf:"write_timeout"`

	// WriteQueue is the per-session outbound queue length. A session
	// whose queue overflows is closed.
	WriteQueue int `koanf:"write_queue"`
}

// AdminConfig configures the admin API listener.
type AdminConfig struct {
	// Addr serves the admin API, /metrics and /healthz. Empty disables it.
	Addr string `koanf:"addr"`
}

// RoundsSection configures round merging and the swap barrier.
type RoundsSection struct {
	SubmitTimeout  time.Duration `koanf:"submit_timeout"`
	BarrierTimeout time.Duration `koanf:"barrier_timeout"`
	TickInterval   time.Duration `koanf:"tick_interval"`
}

// JournalSection configures the round journal.
type JournalSection struct {
	Enabled      bool          `koanf:"enabled"`
	Dir          string        `koanf:"dir"`
	RetainRounds uint64        `koanf:"retain_rounds"`
	GCInterval   time.Duration `koanf:"gc_interval"`
	SyncWrites   bool          `koanf:"sync_writes"`
}

// SecuritySection configures cluster authentication.
type SecuritySection struct {
	ClusterKey string `koanf:"cluster_key"`
}

// DiscoverySection configures memberlist gossip.
type DiscoverySection struct {
	Enabled  bool     `koanf:"enabled"`
	BindAddr string   `koanf:"bind_addr"`
	BindPort int      `koanf:"bind_port"`
	Seeds    []string `koanf:"seeds"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
