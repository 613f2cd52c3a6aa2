// Package main is the entry point for ServiceKeeper.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/host"

	"svckeeper/internal/config"
	"svckeeper/internal/engine"
	"svckeeper/internal/journal"
	"svckeeper/internal/logger"
	"svckeeper/internal/metrics"
	"svckeeper/internal/service"
	"svckeeper/internal/store"
	"svckeeper/internal/svcmgr"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const startupErrorLogDir = "log/ServiceKeeper"

func main() {
	var (
		configPath  = flag.String("config", "conf/ServiceKeeper/ServiceKeeper.json", "Path to main configuration file")
		loggingPath = flag.String("logging", "conf/ServiceKeeper/Logging.json", "Path to logging configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (built %s)\n", service.Name, version, buildTime)
		os.Exit(0)
	}

	// Under the SCM the working directory is System32. An absolute config
	// path is <base>/conf/ServiceKeeper/ServiceKeeper.json; run from <base>.
	if filepath.IsAbs(*configPath) {
		basePath := filepath.Dir(filepath.Dir(filepath.Dir(*configPath)))
		if err := os.Chdir(basePath); err != nil {
			fail(fmt.Errorf("failed to chdir to %s: %w", basePath, err))
		}
	}

	cfg, lc, err := config.LoadSplit(*configPath, *loggingPath)
	if err != nil {
		fail(err)
	}

	svc := service.NewService(func(ctx context.Context) error {
		return run(ctx, cfg, *loggingPath)
	}, service.Options{})
	if svc.IsService() {
		logger.SetServiceMode(true)
	}

	if err := logger.Init(*lc); err != nil {
		fail(fmt.Errorf("failed to initialize logger: %w", err))
	}
	defer logger.Close()
	_ = service.ClearStartupError(startupErrorLogDir)

	log := logger.WithComponent("main")
	log.Info().
		Str("version", version).
		Str("config", *configPath).
		Str("logging", *loggingPath).
		Bool("service", svc.IsService()).
		Msg("Starting ServiceKeeper")

	if err := svc.Run(context.Background()); err != nil {
		log.Error().Err(err).Msg("Service exited with error")
		logger.Close()
		os.Exit(1)
	}

	log.Info().Msg("ServiceKeeper stopped")
}

func fail(err error) {
	service.ReportStartupError(service.Name, err)
	service.WriteStartupError(startupErrorLogDir, err)
	fmt.Fprintf(os.Stderr, "ServiceKeeper failed to start: %v\n", err)
	os.Exit(1)
}

func logHostInfo(ctx context.Context) {
	log := logger.WithComponent("main")

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read host information")
		return
	}
	log.Info().
		Str("hostname", info.Hostname).
		Str("os", info.OS).
		Str("platform", info.Platform).
		Str("platform_version", info.PlatformVersion).
		Str("kernel", info.KernelVersion).
		Time("boot_time", time.Unix(int64(info.BootTime), 0)).
		Msg("Host information")
}

// setupJournal opens the audit journal, or a no-op recorder when disabled.
func setupJournal(cfg config.JournalConfig) (journal.Recorder, func()) {
	log := logger.WithComponent("main")

	if !cfg.Enabled {
		return journal.Nop{}, func() {}
	}
	j, err := journal.New(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to open journal, engine events will only be logged")
		return journal.Nop{}, func() {}
	}
	return j, func() {
		if err := j.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing journal")
		}
	}
}

// setupMetrics registers collectors and serves /metrics until ctx ends.
func setupMetrics(ctx context.Context, cfg config.MetricsConfig, wg *sync.WaitGroup) {
	log := logger.WithComponent("main")

	if !cfg.Enabled {
		return
	}
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Warn().Err(err).Msg("Failed to register metrics")
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := metrics.Serve(ctx, cfg.Address); err != nil {
			log.Error().Err(err).Str("address", cfg.Address).Msg("Metrics endpoint failed")
		}
	}()
}

// setupWatchers starts the targets file and Logging.json watchers and
// returns a function that stops them.
func setupWatchers(cfg *config.Config, eng *engine.Engine, loggingPath string) func() {
	log := logger.WithComponent("main")
	var cleanups []func()

	start := func(name string, fw *config.FileWatcher, err error) {
		if err != nil {
			log.Warn().Err(err).Str("watcher", name).Msg("Failed to create watcher, hot reload disabled")
			return
		}
		if err := fw.Start(); err != nil {
			log.Warn().Err(err).Str("watcher", name).Msg("Failed to start watcher")
			return
		}
		cleanups = append(cleanups, func() {
			if err := fw.Stop(); err != nil {
				log.Error().Err(err).Str("watcher", name).Msg("Error stopping watcher")
			}
		})
	}

	if cfg.WatchTargets {
		fw, err := config.NewTargetsWatcher(cfg.TargetsFile, func() {
			log.Debug().Str("path", cfg.TargetsFile).Msg("Targets file changed")
			eng.Trigger()
		})
		start("targets", fw, err)
	}

	fw, err := config.NewLoggingWatcher(loggingPath, func(newLC *logger.Config) {
		log.Info().Msg("Applying logging configuration changes")
		if err := logger.Init(*newLC); err != nil {
			log.Error().Err(err).Msg("Failed to update logging configuration")
			return
		}
		log.Info().Msg("Logging configuration updated")
	})
	start("logging", fw, err)

	return func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
}

func run(ctx context.Context, cfg *config.Config, loggingPath string) error {
	log := logger.WithComponent("main")

	logHostInfo(ctx)

	targets := store.New(cfg.TargetsFile)
	if err := targets.InitializeIfAbsent(cfg.DefaultTargets); err != nil {
		return fmt.Errorf("failed to initialize targets file: %w", err)
	}

	rec, closeJournal := setupJournal(cfg.Journal)
	defer closeJournal()

	var wg sync.WaitGroup
	defer wg.Wait()
	setupMetrics(ctx, cfg.Metrics, &wg)

	mgr := svcmgr.New(svcmgr.Options{PollInterval: cfg.StatusPollInterval})
	eng := engine.New(targets, mgr, engine.Options{
		Interval:    cfg.PollInterval,
		StopTimeout: cfg.StopTimeout,
		Journal:     rec,
	})

	cleanupWatchers := setupWatchers(cfg, eng, loggingPath)
	defer cleanupWatchers()

	log.Info().
		Str("targets_file", cfg.TargetsFile).
		Strs("default_targets", cfg.DefaultTargets).
		Bool("journal", cfg.Journal.Enabled).
		Bool("metrics", cfg.Metrics.Enabled).
		Msg("ServiceKeeper initialized")

	return eng.Run(ctx)
}
