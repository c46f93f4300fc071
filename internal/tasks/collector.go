package tasks

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"smartmeter-poller/internal/api"
	"smartmeter-poller/internal/catalog"
	"smartmeter-poller/internal/collector"
	"smartmeter-poller/internal/db"
	"smartmeter-poller/internal/logger"
	"smartmeter-poller/internal/modbus"
	"smartmeter-poller/internal/publish"
)

// Options defines initialization overrides for the collector.
// Mirrors the CLI flags used in cmd/collector/main.go.
type Options struct {
	ConfigPath     string
	StorageEnabled bool
	DBPath         string
	APIListen      string
	BridgeListen   string
	NATSURL        string
}

// apply overrides YAML values with the provided options.
func (opts Options) apply(cfg *collector.RootConfig) {
	if opts.StorageEnabled {
		cfg.System.Storage.Enabled = true
	}
	if opts.DBPath != "" {
		cfg.System.Storage.DBPath = opts.DBPath
		cfg.System.Storage.Enabled = true
	}
	if opts.APIListen != "" {
		cfg.System.API.ListenAddress = opts.APIListen
		cfg.System.API.Enabled = true
	}
	if opts.BridgeListen != "" {
		cfg.System.Bridge.ListenAddress = opts.BridgeListen
		cfg.System.Bridge.Enabled = true
	}
	if opts.NATSURL != "" {
		cfg.System.NATS.URL = opts.NATSURL
		cfg.System.NATS.Enabled = true
	}
}

// InitAndRunCollector loads config, applies overrides, constructs the manager and runs it.
func InitAndRunCollector(ctx context.Context, opts Options) error {
	cfg, err := collector.LoadYAML(opts.ConfigPath)
	if err != nil {
		return err
	}
	opts.apply(&cfg)

	log, err := logger.New(cfg.System.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	return Run(ctx, cfg, log)
}

// Run wires the configured sinks and servers around a Manager and blocks
// until ctx is done.
func Run(ctx context.Context, cfg collector.RootConfig, log logger.Logger) error {
	cat := catalog.Default()

	var (
		registry collector.EntityRegistry = collector.NewMemoryRegistry()
		sinks    []collector.ReadingSink
		cleanups []func()
	)
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	if cfg.System.Storage.Enabled {
		store, err := db.Open(cfg.System.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		queued := collector.NewQueuedSink(store, 0, log.WithComponent("storage"))
		registry = store
		sinks = append(sinks, queued)
		cleanups = append(cleanups, func() {
			queued.Close()
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("Closing storage failed")
			}
		})
		log.Info().Str("path", cfg.System.Storage.DBPath).Msg("Storage enabled")
	}

	if cfg.System.Bridge.Enabled {
		bridge := modbus.NewBridge(cat, log.WithComponent("modbus"))
		for i, m := range cfg.EnabledMeters() {
			if i >= 247 {
				break
			}
			bridge.AssignUnit(m.MeterID, uint8(i+1))
		}
		if err := bridge.Listen(cfg.System.Bridge.ListenAddress); err != nil {
			return fmt.Errorf("start modbus bridge: %w", err)
		}
		sinks = append(sinks, bridge)
		cleanups = append(cleanups, bridge.Close)
	}

	if cfg.System.NATS.Enabled {
		natsLog := log.WithComponent("nats")
		nc, err := publish.Connect(cfg.System.NATS.URL, natsLog)
		if err != nil {
			return err
		}
		sinks = append(sinks, publish.NewSink(nc, cfg.System.NATS.SubjectPrefix, natsLog))
		cleanups = append(cleanups, func() {
			if err := nc.Drain(); err != nil {
				natsLog.Warn().Err(err).Msg("NATS drain failed")
			}
		})
	}

	mgr := collector.NewManager(cfg, collector.ManagerOptions{
		Catalog:  cat,
		Logger:   log.WithComponent("collector"),
		Registry: registry,
		Sinks:    sinks,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mgr.Run(gctx) })

	if cfg.System.API.Enabled {
		srv := api.New(cfg.System.API.ListenAddress, mgr, cat, log.WithComponent("api"))
		g.Go(func() error { return srv.Run(gctx) })
	}

	return g.Wait()
}
