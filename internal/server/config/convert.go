package config

import (
	"log/slog"

	"github.com/yndnr/framesync-go/internal/discovery"
	"github.com/yndnr/framesync-go/internal/server/coordinator"
	"github.com/yndnr/framesync-go/internal/storage/journal"
)

// ToCoordinatorConfig maps the sync and rounds sections onto the
// coordinator configuration.
func (c *ServerConfig) ToCoordinatorConfig() *coordinator.Config {
	var key []byte
	if c.Security.ClusterKey != "" {
		key = []byte(c.Security.ClusterKey)
	}
	return &coordinator.Config{
		Addr:             c.Server.Sync.Addr,
		IdleTimeout:      c.Server.Sync.IdleTimeout,
		HandshakeTimeout: c.Server.Sync.HandshakeTimeout,
		WriteTimeout:     c.Server.Sync.WriteTimeout,
		WriteQueue:       c.Server.Sync.WriteQueue,
		SubmitTimeout:    c.Rounds.SubmitTimeout,
		BarrierTimeout:   c.Rounds.BarrierTimeout,
		TickInterval:     c.Rounds.TickInterval,
		ClusterKey:       key,
	}
}

// ToJournalOptions maps the journal section onto journal.Options.
func (c *ServerConfig) ToJournalOptions() journal.Options {
	return journal.Options{
		Dir:          c.Journal.Dir,
		RetainRounds: c.Journal.RetainRounds,
		GCInterval:   c.Journal.GCInterval,
		SyncWrites:   c.Journal.SyncWrites,
	}
}

// ToDiscoveryConfig builds the coordinator's gossip membership config.
// syncAddr is the bound sync listener address, used when no
// advertise address is configured.
func (c *ServerConfig) ToDiscoveryConfig(syncAddr string, logger *slog.Logger) discovery.Config {
	advertise := c.Server.Sync.AdvertiseAddr
	if advertise == "" {
		advertise = syncAddr
	}
	return discovery.Config{
		Name:     c.Server.Name,
		Role:     discovery.RoleCoordinator,
		BindAddr: c.Discovery.BindAddr,
		BindPort: c.Discovery.BindPort,
		SyncAddr: advertise,
		Seeds:    append([]string(nil), c.Discovery.Seeds...),
		Logger:   logger,
	}
}
