package collector

import (
	"context"
	"errors"
	"sync"

	"smartmeter-poller/internal/logger"
	"smartmeter-poller/internal/measurement"
)

const DefaultQueueSize = 256

var (
	ErrQueueFull   = errors.New("sink queue full")
	ErrQueueClosed = errors.New("sink queue closed")
)

type batch struct {
	meterID  string
	readings []measurement.Reading
}

// QueuedSink hands readings to a slower sink on a background goroutine so
// the poller never waits on disk or network. Batches are dropped, not
// blocked on, when the queue is full.
type QueuedSink struct {
	next   ReadingSink
	logger logger.Logger
	q      chan batch

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewQueuedSink(next ReadingSink, size int, log logger.Logger) *QueuedSink {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if log == nil {
		log = logger.NewTestLogger()
	}

	s := &QueuedSink{
		next:   next,
		logger: log,
		q:      make(chan batch, size),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		for b := range s.q {
			if err := s.next.HandleReadings(context.Background(), b.meterID, b.readings); err != nil {
				s.logger.Error().Err(err).Str("meter_id", b.meterID).Msg("Queued sink write failed")
			}
		}
	}()

	return s
}

func (s *QueuedSink) HandleReadings(_ context.Context, meterID string, readings []measurement.Reading) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrQueueClosed
	}

	select {
	case s.q <- batch{meterID: meterID, readings: readings}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting batches and waits until the queued ones are written.
func (s *QueuedSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.q)
	}
	s.mu.Unlock()

	<-s.done
}
