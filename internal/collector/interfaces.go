package collector

//go:generate mockgen -destination=mock_collector.go -package=collector smartmeter-poller/internal/collector Clock,Ticker

import (
	"context"
	"time"

	"smartmeter-poller/internal/gateway"
	"smartmeter-poller/internal/measurement"
)

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// SnapshotListener is pushed every successfully fetched snapshot.
// Implementations must not retain and mutate snap.
type SnapshotListener interface {
	OnSnapshotUpdated(meterID string, snap gateway.Snapshot)
}

// FailureListener is an optional extension of SnapshotListener that is told
// about failed cycles.
type FailureListener interface {
	OnPollFailed(meterID string, reason string)
}

// ReadingSink consumes projected readings of one meter.
type ReadingSink interface {
	HandleReadings(ctx context.Context, meterID string, readings []measurement.Reading) error
}

// Registration is what a meter records about itself once setup succeeds.
type Registration struct {
	MeterID  string
	Title    string
	Host     string
	Port     int
	Device   measurement.DeviceInfo
	Entities []measurement.Entity
}

// EntityRegistry stores meters and their entities. Entity metadata is
// written once and never changed afterwards.
type EntityRegistry interface {
	Register(ctx context.Context, reg Registration) error
}
