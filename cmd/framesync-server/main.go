package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/yndnr/framesync-go/internal/discovery"
	"github.com/yndnr/framesync-go/internal/infra/buildinfo"
	"github.com/yndnr/framesync-go/internal/infra/confloader"
	"github.com/yndnr/framesync-go/internal/infra/shutdown"
	"github.com/yndnr/framesync-go/internal/server/adminserver"
	"github.com/yndnr/framesync-go/internal/server/config"
	"github.com/yndnr/framesync-go/internal/server/coordinator"
	"github.com/yndnr/framesync-go/internal/storage/journal"
	"github.com/yndnr/framesync-go/internal/telemetry/logger"
	"github.com/yndnr/framesync-go/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("framesync-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := config.Load(*configFile, nil)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, slogLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting framesync-server",
		"version", info.Version,
		"commit", info.Commit,
		"protocol", info.Protocol,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	reg := metric.NewRegistry()
	shutdownHandler := shutdown.NewHandler(30 * time.Second)

	// Hooks run in reverse order of registration.
	opts := []coordinator.Option{
		coordinator.WithLogger(slogLogger),
		coordinator.WithMetrics(metric.NewCoordinatorMetrics(reg)),
	}
	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.ToJournalOptions(), slogLogger)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		j.RegisterMetrics(reg)
		opts = append(opts, coordinator.WithJournal(j))
		shutdownHandler.OnShutdown(func(context.Context) error {
			log.Info("closing journal")
			return j.Close()
		})
	}

	coord := coordinator.New(cfg.ToCoordinatorConfig(), opts...)
	if err := coord.Start(context.Background()); err != nil {
		return err
	}
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down coordinator")
		return coord.Shutdown(ctx)
	})

	if cfg.Discovery.Enabled {
		disc, err := discovery.New(cfg.ToDiscoveryConfig(coord.Addr().String(), slogLogger))
		if err != nil {
			shutdownHandler.Trigger()
			shutdownHandler.Wait()
			return fmt.Errorf("start discovery: %w", err)
		}
		log.Info("advertising coordinator", "gossip_addr", disc.GossipAddr())
		shutdownHandler.OnShutdown(func(context.Context) error {
			log.Info("leaving gossip pool")
			return disc.Close()
		})
	}

	if cfg.Server.Admin.Addr != "" {
		admin := adminserver.New(cfg.Server.Admin.Addr, coord, reg, slogLogger)
		if err := admin.Start(); err != nil {
			shutdownHandler.Trigger()
			shutdownHandler.Wait()
			return err
		}
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down admin server")
			return admin.Shutdown(ctx)
		})
	}

	if *configFile != "" {
		stop, err := watchConfig(*configFile, coord, slogLogger)
		if err != nil {
			log.Warn("config watch disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown(func(context.Context) error { return stop() })
		}
	}

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// initLogger initializes the structured logger.
// Returns both the logger interface and slog.Logger for components that need it.
func initLogger(cfg *config.ServerConfig) (logger.Logger, *slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.SetDefault(log)
	return log, logger.Slog(log), nil
}

// watchConfig applies log level and round timeout changes from path
// without a restart.
func watchConfig(path string, coord *coordinator.Server, log *slog.Logger) (func() error, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return nil, err
	}
	w.OnChange(func(string) {
		cfg, err := config.Load(path, nil)
		if err != nil {
			log.Warn("ignoring invalid configuration", "path", path, "error", err)
			return
		}
		logger.SetLevel(cfg.Log.Level)
		coord.SetTimeouts(cfg.Rounds.SubmitTimeout, cfg.Rounds.BarrierTimeout)
	})
	w.StartAsync()
	return w.Stop, nil
}
