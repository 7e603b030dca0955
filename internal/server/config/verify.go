package config

import (
	"fmt"
	"net"
	"time"

	"github.com/yndnr/framesync-go/internal/core/domain"
	"github.com/yndnr/framesync-go/internal/infra/confloader"
	"github.com/yndnr/framesync-go/internal/protocol"
)

// Verify validates the configuration. Every error wraps
// domain.ErrInvalidConfig.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(cfg); err != nil {
		return err
	}
	if err := verifyRounds(&cfg.Rounds); err != nil {
		return err
	}
	if cfg.Journal.Enabled && cfg.Journal.Dir == "" {
		return invalid("journal.dir is required when the journal is enabled")
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
	if err := confloader.ValidateLog(cfg.Log.Level, cfg.Log.Format); err != nil {
		return invalid("log.%v", err)
	}
	return nil
}

func verifyServer(cfg *ServerConfig) error {
	s := &cfg.Server
	if err := confloader.ValidateHostPort(s.Sync.Addr, true); err != nil {
		return invalid("server.sync.addr: %v", err)
	}
	if s.Sync.AdvertiseAddr != "" {
		if err := confloader.ValidateHostPort(s.Sync.AdvertiseAddr, false); err != nil {
			return invalid("server.sync.advertise_addr: %v", err)
		}
	} else if cfg.Discovery.Enabled && unspecifiedHost(s.Sync.Addr) {
		return invalid("server.sync.advertise_addr is required when discovery is enabled and server.sync.addr has no concrete host")
	}
	if s.Admin.Addr != "" {
		if err := confloader.ValidateHostPort(s.Admin.Addr, true); err != nil {
			return invalid("server.admin.addr: %v", err)
		}
	}

	for key, d := range map[string]time.Duration{
		"server.sync.idle_timeout":      s.Sync.IdleTimeout,
		"server.sync.handshake_timeout": s.Sync.HandshakeTimeout,
		"server.sync.write_timeout":     s.Sync.WriteTimeout,
	} {
		if err := positive(key, d); err != nil {
			return err
		}
	}
	if s.Sync.WriteQueue < 1 {
		return invalid("server.sync.write_queue must be at least 1")
	}
	return nil
}

func verifyRounds(r *RoundsSection) error {
	if err := positive("rounds.submit_timeout", r.SubmitTimeout); err != nil {
		return err
	}
	if err := positive("rounds.barrier_timeout", r.BarrierTimeout); err != nil {
		return err
	}
	return positive("rounds.tick_interval", r.TickInterval)
}

// unspecifiedHost reports whether addr binds every interface.
func unspecifiedHost(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsUnspecified()
}

func positive(key string, d time.Duration) error {
	if d <= 0 {
		return invalid("%s must be positive, got %v", key, d)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return domain.ErrInvalidConfig.WithDetails(fmt.Sprintf(format, args...))
}
