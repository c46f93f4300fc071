// Package modbus exposes meter measurements to Modbus TCP clients.
package modbus

import (
	"context"
	"errors"
	"math"
	"sync"

	"smartmeter-poller/internal/catalog"
	"smartmeter-poller/internal/logger"
	"smartmeter-poller/internal/measurement"
	"smartmeter-poller/internal/model"
)

var ErrNoFreeUnit = errors.New("no free modbus unit id")

// Bridge mirrors the readings of each meter into the register bank of a
// Modbus unit. Every numeric field is a float32 at its RegisterMap
// address; a field without a current value reads as NaN and its discrete
// input is off.
type Bridge struct {
	server *Server
	points []model.RegisterPoint
	index  map[string]int
	logger logger.Logger

	mu    sync.Mutex
	units map[string]uint8
	used  map[uint8]bool
}

func NewBridge(cat *catalog.Catalog, log logger.Logger) *Bridge {
	if cat == nil {
		cat = catalog.Default()
	}
	if log == nil {
		log = logger.NewTestLogger()
	}

	points := RegisterMap(cat)
	index := make(map[string]int, len(points))
	for i, p := range points {
		index[p.Key] = i
	}

	return &Bridge{
		server: NewServer(),
		points: points,
		index:  index,
		logger: log,
		units:  make(map[string]uint8),
		used:   make(map[uint8]bool),
	}
}

// Points returns the register layout shared by every unit.
func (b *Bridge) Points() []model.RegisterPoint {
	return append([]model.RegisterPoint(nil), b.points...)
}

// AssignUnit binds meterID to a unit id. Until its first readings arrive
// the unit reads as all NaN.
func (b *Bridge) AssignUnit(meterID string, unit uint8) {
	b.mu.Lock()
	if old, ok := b.units[meterID]; ok {
		delete(b.used, old)
		b.server.RemoveUnit(old)
	}
	b.units[meterID] = unit
	b.used[unit] = true
	b.mu.Unlock()

	input, discrete := b.encode(nil)
	b.server.SetUnit(unit, input, discrete)
}

// UnitID returns the unit bound to meterID.
func (b *Bridge) UnitID(meterID string) (uint8, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.units[meterID]
	return u, ok
}

func (b *Bridge) unitFor(meterID string) (uint8, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if u, ok := b.units[meterID]; ok {
		return u, nil
	}
	for u := 1; u <= 247; u++ {
		if !b.used[uint8(u)] {
			b.units[meterID] = uint8(u)
			b.used[uint8(u)] = true
			b.logger.Info().Str("meter_id", meterID).Int("unit_id", u).Msg("Assigned Modbus unit")
			return uint8(u), nil
		}
	}
	return 0, ErrNoFreeUnit
}

func (b *Bridge) HandleReadings(_ context.Context, meterID string, readings []measurement.Reading) error {
	unit, err := b.unitFor(meterID)
	if err != nil {
		return err
	}

	input, discrete := b.encode(readings)
	b.server.SetUnit(unit, input, discrete)

	return nil
}

func (b *Bridge) encode(readings []measurement.Reading) ([]uint16, []bool) {
	values := make([]float32, len(b.points))
	discrete := make([]bool, len(b.points))
	for i := range values {
		values[i] = float32(math.NaN())
	}

	for _, r := range readings {
		i, ok := b.index[r.Descriptor.Key]
		if !ok || !r.Available {
			continue
		}
		f, ok := r.Value.Float()
		if !ok {
			continue
		}
		values[i] = float32(f)
		discrete[i] = true
	}

	input := make([]uint16, len(b.points)*RegistersPerPoint)
	for i, v := range values {
		input[2*i], input[2*i+1] = EncodeFloat32(v)
	}
	return input, discrete
}

// Listen starts the Modbus TCP server.
func (b *Bridge) Listen(address string) error {
	if err := b.server.Listen(address); err != nil {
		return err
	}
	b.logger.Info().Str("address", b.server.Addr()).Int("points", len(b.points)).Msg("Modbus bridge listening")
	return nil
}

func (b *Bridge) Addr() string { return b.server.Addr() }

func (b *Bridge) Close() { b.server.Close() }
