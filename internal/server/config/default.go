package config

import "time"

// Default configuration values.
const (
	DefaultSyncAddr         = "0.0.0.0:7450"
	DefaultIdleTimeout      = 30 * time.Second
	DefaultHandshakeTimeout = 2 * time.Second
	DefaultWriteTimeout     = 250 * time.Millisecond
	DefaultWriteQueue       = 64
	DefaultAdminAddr        = "127.0.0.1:7451"

	// Round deadlines must stay below the nodes' sync.event_timeout and
	// sync.swap_timeout by more than the network round trip, or healthy
	// nodes give up before a round missing a stalled peer is merged.
	DefaultSubmitTimeout  = 25 * time.Millisecond
	DefaultBarrierTimeout = 25 * time.Millisecond
	DefaultTickInterval   = 2 * time.Millisecond

	DefaultJournalDir        = "/var/lib/framesync-server/journal"
	DefaultJournalRetain     = 100000
	DefaultJournalGCInterval = 10 * time.Minute

	DefaultDiscoveryBindAddr = "0.0.0.0"
	DefaultDiscoveryBindPort = 7946

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Sync: SyncConfig{
				Addr:             DefaultSyncAddr,
				IdleTimeout:      DefaultIdleTimeout,
				HandshakeTimeout: DefaultHandshakeTimeout,
				WriteTimeout:     DefaultWriteTimeout,
				WriteQueue:       DefaultWriteQueue,
			},
			Admin: AdminConfig{
				Addr: DefaultAdminAddr,
			},
		},
		Rounds: RoundsSection{
			SubmitTimeout:  DefaultSubmitTimeout,
			BarrierTimeout: DefaultBarrierTimeout,
			TickInterval:   DefaultTickInterval,
		},
		Journal: JournalSection{
			Dir:          DefaultJournalDir,
			RetainRounds: DefaultJournalRetain,
			GCInterval:   DefaultJournalGCInterval,
		},
		Discovery: DiscoverySection{
			BindAddr: DefaultDiscoveryBindAddr,
			BindPort: DefaultDiscoveryBindPort,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
