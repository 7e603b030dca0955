package config

import (
	"fmt"
	"time"

	"github.com/yndnr/framesync-go/internal/core/domain"
	"github.com/yndnr/framesync-go/internal/infra/confloader"
	"github.com/yndnr/framesync-go/internal/protocol"
)

// Verify validates the configuration. Every error wraps
// domain.ErrInvalidConfig.
func Verify(cfg *NodeConfig) error {
	if cfg.Node.ID != "" {
		if err := domain.ValidateNodeID(cfg.Node.ID); err != nil {
			return err
		}
	}
	if err := verifyServer(cfg); err != nil {
		return err
	}
	if err := verifySync(&cfg.Sync); err != nil {
		return err
	}
	if len(cfg.Security.ClusterKey) > protocol.MaxClusterKeyLen {
		return invalid("security.cluster_key longer than %d bytes", protocol.MaxClusterKeyLen)
	}
	if cfg.Discovery.Enabled {
		d := &cfg.Discovery
		if err := confloader.ValidateGossip(d.BindAddr, d.BindPort, d.Seeds); err != nil {
			return invalid("discovery.%v", err)
		}
	}
	if cfg.Metrics.Addr != "" {
		if err := confloader.ValidateHostPort(cfg.Metrics.Addr, true); err != nil {
			return domain.ErrInvalidConfig.WithDetails("metrics.addr").WithCause(err)
		}
	}
	if err := confloader.ValidateLog(cfg.Log.Level, cfg.Log.Format); err != nil {
		return invalid("log.%v", err)
	}
	return nil
}

func verifyServer(cfg *NodeConfig) error {
	s := &cfg.Server
	if s.Enabled && !cfg.Discovery.Enabled {
		if err := confloader.ValidateHostPort(s.Address, false); err != nil {
			return domain.ErrInvalidConfig.WithDetails("server.address").WithCause(err)
		}
	}
	if err := positive("server.connect_timeout", s.ConnectTimeout); err != nil {
		return err
	}
	return positive("server.write_timeout", s.WriteTimeout)
}

func verifySync(s *SyncSection) error {
	if err := positive("sync.event_timeout", s.EventTimeout); err != nil {
		return err
	}
	if err := positive("sync.swap_timeout", s.SwapTimeout); err != nil {
		return err
	}
	return positive("sync.reconnect_interval", s.ReconnectInterval)
}

func positive(key string, d time.Duration) error {
	if d <= 0 {
		return invalid("%s must be positive, got %s", key, d)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return domain.ErrInvalidConfig.WithDetails(fmt.Sprintf(format, args...))
}
