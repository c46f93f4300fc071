package collector

import (
	"context"
	"sync"
	"time"

	"smartmeter-poller/internal/catalog"
	"smartmeter-poller/internal/gateway"
	"smartmeter-poller/internal/logger"
)

const shutdownGrace = 5 * time.Second

// ManagerOptions are shared by every meter the manager runs.
type ManagerOptions struct {
	Catalog  *catalog.Catalog
	Clock    Clock
	Logger   logger.Logger
	Registry EntityRegistry
	Sinks    []ReadingSink
	// NewFetcher overrides the HTTP gateway client, mostly for tests.
	NewFetcher func(MeterConfig) gateway.Fetcher
}

// Manager coordinates running multiple meters concurrently.
type Manager struct {
	cfg    RootConfig
	logger logger.Logger
	meters []*Meter
	byID   map[string]*Meter
}

// NewManager builds one Meter per enabled meter in cfg. Nothing is fetched
// until Run.
func NewManager(cfg RootConfig, opts ManagerOptions) *Manager {
	log := opts.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	m := &Manager{
		cfg:    cfg,
		logger: log,
		byID:   make(map[string]*Meter),
	}

	for _, mc := range cfg.EnabledMeters() {
		var fetcher gateway.Fetcher
		if opts.NewFetcher != nil {
			fetcher = opts.NewFetcher(mc)
		}
		meter := NewMeter(mc, MeterOptions{
			Catalog:  opts.Catalog,
			Fetcher:  fetcher,
			Clock:    opts.Clock,
			Logger:   log,
			Registry: opts.Registry,
			Sinks:    opts.Sinks,
		})
		m.meters = append(m.meters, meter)
		m.byID[mc.MeterID] = meter
	}

	return m
}

// Meters returns the managed meters in configuration order.
func (m *Manager) Meters() []*Meter {
	return append([]*Meter(nil), m.meters...)
}

func (m *Manager) Meter(id string) (*Meter, bool) {
	meter, ok := m.byID[id]
	return meter, ok
}

// Run sets up every meter, retrying failed setups every SetupRetry, and
// blocks until ctx is done. Then it stops all pollers.
func (m *Manager) Run(ctx context.Context) error {
	maxW := m.cfg.System.MaxWorkers
	if maxW <= 0 {
		maxW = DefaultMaxWorkers
	}
	sem := make(chan struct{}, maxW)

	retry := m.cfg.System.SetupRetry
	if retry <= 0 {
		retry = DefaultSetupRetry
	}

	var wg sync.WaitGroup

	for _, meter := range m.meters {
		wg.Add(1)
		go func(meter *Meter) {
			defer wg.Done()
			m.setupWithRetry(ctx, meter, sem, retry)
		}(meter)
	}

	<-ctx.Done()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(shutdownGrace):
		m.logger.Warn().Msg("Timeout waiting for meter setup to stop")
	}

	m.shutdown()

	return nil
}

func (m *Manager) setupWithRetry(ctx context.Context, meter *Meter, sem chan struct{}, retry time.Duration) {
	for attempt := 1; ; attempt++ {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		err := meter.Setup(ctx)
		<-sem

		if err == nil {
			return
		}

		m.logger.Warn().
			Err(err).
			Str("meter_id", meter.ID()).
			Int("attempt", attempt).
			Dur("retry_in", retry).
			Msg("Meter setup failed")

		t := time.NewTimer(retry)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
}

func (m *Manager) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	for _, meter := range m.meters {
		if err := meter.Teardown(ctx); err != nil {
			m.logger.Warn().Err(err).Str("meter_id", meter.ID()).Msg("Meter teardown timed out")
		}
	}
}
