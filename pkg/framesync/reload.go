package framesync

import (
	"github.com/yndnr/framesync-go/internal/core/domain"
	"github.com/yndnr/framesync-go/internal/infra/confloader"
	"github.com/yndnr/framesync-go/internal/node/config"
	"github.com/yndnr/framesync-go/internal/telemetry/logger"
)

// Reload applies the live-reloadable settings of cfg: the log level
// and both phase timeouts. Other changes need a restart.
func (n *Node) Reload(cfg *config.NodeConfig) error {
	if err := config.Verify(cfg); err != nil {
		return err
	}
	logger.SetLevel(cfg.Log.Level)
	n.sync.SetTimeouts(cfg.Sync.EventTimeout, cfg.Sync.SwapTimeout)

	n.logger.Info("configuration reloaded",
		"log_level", cfg.Log.Level,
		"event_timeout", cfg.Sync.EventTimeout,
		"swap_timeout", cfg.Sync.SwapTimeout,
	)
	return nil
}

// Watch reloads path whenever it changes on disk. An invalid file is
// logged and ignored. Watching stops on Close.
func (n *Node) Watch(path string, overrides map[string]any) error {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(n.logger))
	if err != nil {
		return err
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return err
	}
	w.OnChange(func(string) {
		cfg, err := config.Load(path, overrides)
		if err != nil {
			n.logger.Warn("ignoring invalid configuration", "path", path, "error", err)
			return
		}
		if err := n.Reload(cfg); err != nil {
			n.logger.Warn("reload failed", "path", path, "error", err)
		}
	})

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		w.Stop()
		return domain.ErrShutdown
	}
	if n.stopWatch != nil {
		n.stopWatch()
	}
	n.stopWatch = w.Stop
	n.mu.Unlock()

	w.StartAsync()
	return nil
}
