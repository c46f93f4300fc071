package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"smartmeter-poller/internal/collector"
	"smartmeter-poller/internal/measurement"
	"smartmeter-poller/internal/model"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrDeviceExists   = errors.New("device already configured")
)

// DB wraps sqlite connection
type DB struct {
	ORM *gorm.DB
}

// DeviceInfo mirrors the devices table for stats output
type DeviceInfo struct {
	MAC              string    `json:"mac"`
	MeterID          string    `json:"meter_id"`
	Title            string    `json:"title"`
	Host             string    `json:"host"`
	Port             int       `json:"port"`
	Model            string    `json:"model"`
	Firmware         string    `json:"firmware"`
	ConfigurationURL string    `json:"configuration_url"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// EntityInfo mirrors the entities table
type EntityInfo struct {
	StableID    string `json:"stable_id"`
	EntityID    string `json:"entity_id"`
	DeviceMAC   string `json:"device_mac"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Unit        string `json:"unit"`
	Category    string `json:"category"`
	Aggregation string `json:"aggregation"`
	Icon        string `json:"icon"`
}

// LatestInfo is an entity joined with its latest value.
type LatestInfo struct {
	StableID  string    `json:"stable_id"`
	EntityID  string    `json:"entity_id"`
	MeterID   string    `json:"meter_id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	Value     string    `json:"value"`
	Numeric   *float64  `json:"numeric,omitempty"`
	Available bool      `json:"available"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stats aggregates device, entity and latest value lists.
type Stats struct {
	DeviceCount int          `json:"device_count"`
	Devices     []DeviceInfo `json:"devices"`
	EntityCount int          `json:"entity_count"`
	Entities    []EntityInfo `json:"entities"`
	LatestCount int          `json:"latest_count"`
	Latest      []LatestInfo `json:"latest"`
}

// Open opens the SQLite database using GORM and runs migrations.
func Open(path string) (*DB, error) {
	g, err := openORM(path)
	if err != nil {
		return nil, err
	}
	if err := migrateORM(g); err != nil {
		_ = closeORM(g)
		return nil, err
	}
	return &DB{ORM: g}, nil
}

func (d *DB) Close() error { return closeORM(d.ORM) }

// Register stores the device and inserts entities not seen before.
// Existing entity rows keep their original metadata.
func (d *DB) Register(ctx context.Context, reg collector.Registration) error {
	mac := reg.Device.Identifier
	if mac == "" {
		mac = measurement.UnknownMAC
	}

	dev := &model.Device{
		MAC:              mac,
		MeterID:          reg.MeterID,
		Title:            reg.Title,
		Host:             reg.Host,
		Port:             reg.Port,
		Manufacturer:     reg.Device.Manufacturer,
		Model:            reg.Device.Model,
		Firmware:         reg.Device.SWVersion,
		ConfigurationURL: reg.Device.ConfigurationURL,
	}

	rows := make([]model.Entity, 0, len(reg.Entities))
	for _, e := range reg.Entities {
		rows = append(rows, model.Entity{
			StableID:    e.StableID,
			EntityID:    e.EntityID,
			DeviceMAC:   mac,
			Key:         e.Descriptor.Key,
			Name:        e.Descriptor.Name,
			Unit:        e.Descriptor.Unit,
			Category:    string(e.Descriptor.Category),
			Aggregation: string(e.Descriptor.Aggregation),
			Icon:        e.Descriptor.Icon,
		})
	}

	return d.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertDevice(ctx, tx, dev); err != nil {
			return fmt.Errorf("upsert device %s: %w", mac, err)
		}
		if err := insertEntities(ctx, tx, rows); err != nil {
			return fmt.Errorf("insert entities: %w", err)
		}
		return nil
	})
}

// AddDevice registers a device that is not stored yet. A known mac
// returns ErrDeviceExists and leaves the stored row untouched.
func (d *DB) AddDevice(ctx context.Context, reg collector.Registration) error {
	mac := reg.Device.Identifier
	_, err := d.Device(ctx, mac)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrDeviceExists, mac)
	case !errors.Is(err, ErrDeviceNotFound):
		return err
	}

	return d.Register(ctx, reg)
}

// HandleReadings upserts one latest_values row per reading.
func (d *DB) HandleReadings(ctx context.Context, meterID string, readings []measurement.Reading) error {
	rows := make([]model.LatestValue, 0, len(readings))
	for _, r := range readings {
		row := model.LatestValue{
			StableID:  r.StableID,
			MeterID:   meterID,
			Key:       r.Descriptor.Key,
			Value:     r.Value.String(),
			Available: r.Available,
			UpdatedAt: r.Timestamp,
		}
		if f, ok := r.Value.Float(); ok {
			row.Numeric = &f
		}
		rows = append(rows, row)
	}

	return upsertLatest(ctx, d.ORM, rows)
}

// ListDevices returns all devices
func (d *DB) ListDevices(ctx context.Context) ([]DeviceInfo, error) {
	var devs []model.Device
	if err := d.ORM.WithContext(ctx).Order("mac").Find(&devs).Error; err != nil {
		return nil, err
	}
	out := make([]DeviceInfo, 0, len(devs))
	for _, di := range devs {
		out = append(out, DeviceInfo{
			MAC:              di.MAC,
			MeterID:          di.MeterID,
			Title:            di.Title,
			Host:             di.Host,
			Port:             di.Port,
			Model:            di.Model,
			Firmware:         di.Firmware,
			ConfigurationURL: di.ConfigurationURL,
			UpdatedAt:        di.UpdatedAt,
		})
	}
	return out, nil
}

// Device returns one device by mac.
func (d *DB) Device(ctx context.Context, mac string) (DeviceInfo, error) {
	var di model.Device
	err := d.ORM.WithContext(ctx).Where("mac = ?", mac).First(&di).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DeviceInfo{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, mac)
	}
	if err != nil {
		return DeviceInfo{}, err
	}
	return DeviceInfo{
		MAC:              di.MAC,
		MeterID:          di.MeterID,
		Title:            di.Title,
		Host:             di.Host,
		Port:             di.Port,
		Model:            di.Model,
		Firmware:         di.Firmware,
		ConfigurationURL: di.ConfigurationURL,
		UpdatedAt:        di.UpdatedAt,
	}, nil
}

// ListEntities returns the entities of a device, or all when mac is empty.
func (d *DB) ListEntities(ctx context.Context, mac string) ([]EntityInfo, error) {
	q := d.ORM.WithContext(ctx).Order("device_mac, stable_id")
	if mac != "" {
		q = q.Where("device_mac = ?", mac)
	}
	var rows []model.Entity
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]EntityInfo, 0, len(rows))
	for _, e := range rows {
		out = append(out, EntityInfo{
			StableID:    e.StableID,
			EntityID:    e.EntityID,
			DeviceMAC:   e.DeviceMAC,
			Key:         e.Key,
			Name:        e.Name,
			Unit:        e.Unit,
			Category:    e.Category,
			Aggregation: e.Aggregation,
			Icon:        e.Icon,
		})
	}
	return out, nil
}

// LatestValues returns every entity's latest value, optionally for one meter.
func (d *DB) LatestValues(ctx context.Context, meterID string) ([]LatestInfo, error) {
	q := d.ORM.WithContext(ctx).
		Table("latest_values AS l").
		Select(`l.stable_id, e.entity_id, l.meter_id, l."key", e.name, e.unit, l.value, l.numeric, l.available, l.updated_at`).
		Joins("JOIN entities e ON e.stable_id = l.stable_id").
		Order("l.meter_id, e.entity_id")
	if meterID != "" {
		q = q.Where("l.meter_id = ?", meterID)
	}
	var out []LatestInfo
	if err := q.Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteDevice removes a device with its entities and latest values.
func (d *DB) DeleteDevice(ctx context.Context, mac string) error {
	return deleteDevice(ctx, d.ORM, mac)
}

// Stats collects devices, entities and latest values.
func (d *DB) Stats(ctx context.Context, meterID string) (Stats, error) {
	devices, err := d.ListDevices(ctx)
	if err != nil {
		return Stats{}, err
	}
	entities, err := d.ListEntities(ctx, "")
	if err != nil {
		return Stats{}, err
	}
	latest, err := d.LatestValues(ctx, meterID)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		DeviceCount: len(devices),
		Devices:     devices,
		EntityCount: len(entities),
		Entities:    entities,
		LatestCount: len(latest),
		Latest:      latest,
	}, nil
}

// StatsJSON returns Stats encoded as JSON.
func (d *DB) StatsJSON(ctx context.Context, meterID string) ([]byte, error) {
	st, err := d.Stats(ctx, meterID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(st)
}
