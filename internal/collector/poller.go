package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"smartmeter-poller/internal/gateway"
	"smartmeter-poller/internal/logger"
)

var (
	// ErrNotReady wraps a failed first fetch; setup should be retried later.
	ErrNotReady       = errors.New("gateway not ready")
	ErrAlreadyStarted = errors.New("poller already started")
	// ErrStopped is returned by Start when Stop ran during the first fetch.
	ErrStopped        = errors.New("poller stopped during start")
)

// State is the poller's schedule state.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateScheduled
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateScheduled:
		return "scheduled"
	default:
		return "idle"
	}
}

// Poller fetches one gateway on a fixed interval and keeps the latest
// snapshot. It is the only writer of that snapshot; readers may call
// CurrentSnapshot concurrently and always see a whole snapshot.
type Poller struct {
	meterID  string
	host     string
	port     int
	url      string
	interval time.Duration
	fetcher  gateway.Fetcher
	clock    Clock
	logger   logger.Logger

	snapshot atomic.Pointer[gateway.Snapshot]

	mu          sync.Mutex
	state       State
	gen         uint64
	lastSuccess bool
	reason      string
	lastUpdate  time.Time
	listeners   []SnapshotListener
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewPoller creates an idle poller for cfg. A nil fetcher means the HTTP
// gateway client; a nil clock means the wall clock.
func NewPoller(cfg MeterConfig, fetcher gateway.Fetcher, clock Clock, log logger.Logger) *Poller {
	url := gateway.URL(cfg.Host, cfg.Port)
	if fetcher == nil {
		c := gateway.NewClient(cfg.Host, cfg.Port, cfg.Timeout)
		fetcher, url = c, c.URL()
	}
	if clock == nil {
		clock = realClock{}
	}
	if log == nil {
		log = logger.NewTestLogger()
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	done := make(chan struct{})
	close(done)

	return &Poller{
		meterID:  cfg.MeterID,
		host:     cfg.Host,
		port:     cfg.Port,
		url:      url,
		interval: interval,
		fetcher:  fetcher,
		clock:    clock,
		logger:   log,
		done:     done,
	}
}

// AddListener subscribes l to snapshot updates.
func (p *Poller) AddListener(l SnapshotListener) {
	p.mu.Lock()
	p.listeners = append(p.listeners, l)
	p.mu.Unlock()
}

// Start performs the first fetch synchronously. If it fails the poller
// stays idle and the error wraps ErrNotReady. Otherwise the fetch loop is
// scheduled and runs until Stop or until ctx is done.
func (p *Poller) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		cancel()
		return ErrAlreadyStarted
	}
	p.gen++
	gen := p.gen
	p.state = StateStarting
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	snap, err := p.safeFetch(runCtx)

	p.mu.Lock()
	if p.gen != gen || p.state != StateStarting {
		p.mu.Unlock()
		cancel()
		close(done)
		p.logger.Debug().Str("meter_id", p.meterID).Msg("Discarding first fetch after stop")

		return ErrStopped
	}
	if err != nil {
		p.state = StateIdle
		p.lastSuccess = false
		p.reason = err.Error()
		p.mu.Unlock()
		cancel()
		close(done)

		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}

	ticker := p.clock.Ticker(p.interval)
	p.state = StateScheduled
	p.storeLocked(snap)
	listeners := append([]SnapshotListener(nil), p.listeners...)
	p.mu.Unlock()

	p.logger.Info().Str("meter_id", p.meterID).Str("url", p.url).Dur("interval", p.interval).Msg("Poller scheduled")
	p.notify(listeners, snap)

	go p.loop(runCtx, gen, ticker, done)

	return nil
}

// Stop cancels the schedule and any in-flight fetch, including the first
// one still running inside Start. It is safe to call at any time and more
// than once. It waits for the loop to exit until ctx is
// done; a fetch finishing after Stop is discarded either way.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.state == StateIdle {
		p.mu.Unlock()
		return nil
	}
	p.state = StateIdle
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	p.logger.Info().Str("meter_id", p.meterID).Msg("Poller stopped")

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the current fetch loop has exited.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.done
}

// CurrentSnapshot returns the last successful snapshot, which stays
// readable after failures and after Stop.
func (p *Poller) CurrentSnapshot() (gateway.Snapshot, bool) {
	s := p.snapshot.Load()
	if s == nil {
		return nil, false
	}

	return *s, true
}

func (p *Poller) LastSuccess() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.lastSuccess
}

// FailureReason is the message of the last failed cycle, empty after a success.
func (p *Poller) FailureReason() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.reason
}

// LastUpdate is when the current snapshot was stored.
func (p *Poller) LastUpdate() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.lastUpdate
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

func (p *Poller) MeterID() string { return p.meterID }
func (p *Poller) Host() string    { return p.host }
func (p *Poller) Port() int       { return p.port }
func (p *Poller) URL() string     { return p.url }

func (p *Poller) Interval() time.Duration { return p.interval }

func (p *Poller) loop(ctx context.Context, gen uint64, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			if p.gen == gen {
				p.state = StateIdle
			}
			p.mu.Unlock()

			return
		case <-ticker.Chan():
			p.cycle(ctx, gen)
		}
	}
}

// cycle runs one fetch. Nothing escapes it: failures only flip the
// availability flag and are logged.
func (p *Poller) cycle(ctx context.Context, gen uint64) {
	snap, err := p.safeFetch(ctx)

	p.mu.Lock()
	if p.gen != gen || p.state != StateScheduled || ctx.Err() != nil {
		p.mu.Unlock()
		p.logger.Debug().Str("meter_id", p.meterID).Msg("Discarding fetch result after stop")

		return
	}

	listeners := append([]SnapshotListener(nil), p.listeners...)

	if err != nil {
		p.lastSuccess = false
		p.reason = err.Error()
		p.mu.Unlock()

		p.logger.Warn().Err(err).Str("meter_id", p.meterID).Str("url", p.url).Msg("Poll failed")
		for _, l := range listeners {
			if fl, ok := l.(FailureListener); ok {
				p.safeCall(func() { fl.OnPollFailed(p.meterID, err.Error()) })
			}
		}

		return
	}

	p.storeLocked(snap)
	p.mu.Unlock()

	p.notify(listeners, snap)
}

// storeLocked replaces the snapshot wholesale. p.mu must be held.
func (p *Poller) storeLocked(snap gateway.Snapshot) {
	p.snapshot.Store(&snap)
	p.lastSuccess = true
	p.reason = ""
	p.lastUpdate = p.clock.Now()
}

func (p *Poller) notify(listeners []SnapshotListener, snap gateway.Snapshot) {
	p.logger.Debug().Str("meter_id", p.meterID).Int("fields", len(snap)).Msg("Snapshot updated")

	for _, l := range listeners {
		p.safeCall(func() { l.OnSnapshotUpdated(p.meterID, snap) })
	}
}

func (p *Poller) safeFetch(ctx context.Context) (snap gateway.Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected error: %v", r)
		}
	}()

	return p.fetcher.Fetch(ctx)
}

func (p *Poller) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Str("meter_id", p.meterID).Interface("panic", r).Msg("Snapshot listener panicked")
		}
	}()

	fn()
}
