package config

import "time"

// Default configuration values.
const (
	DefaultServerAddress  = "127.0.0.1:7450"
	DefaultConnectTimeout = time.Second
	DefaultWriteTimeout   = 250 * time.Millisecond

	// Event and swap timeouts must exceed the coordinator's round
	// deadlines plus the round trip to it.
	DefaultEventTimeout      = 50 * time.Millisecond
	DefaultSwapTimeout       = 50 * time.Millisecond
	DefaultReconnectInterval = time.Second

	DefaultDiscoveryBindAddr = "0.0.0.0"
	DefaultDiscoveryBindPort = 7946

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default node configuration.
func Default() *NodeConfig {
	return &NodeConfig{
		Server: ServerSection{
			Enabled:        true,
			Address:        DefaultServerAddress,
			ConnectTimeout: DefaultConnectTimeout,
			WriteTimeout:   DefaultWriteTimeout,
		},
		Sync: SyncSection{
			EventTimeout:      DefaultEventTimeout,
			SwapTimeout:       DefaultSwapTimeout,
			ReconnectInterval: DefaultReconnectInterval,
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
