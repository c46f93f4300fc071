package meterdb

import (
	"context"
	"time"

	dbpkg "smartmeter-poller/internal/db"
)

// ErrDeviceNotFound is returned by Device for an unknown mac.
var ErrDeviceNotFound = dbpkg.ErrDeviceNotFound

type Device struct {
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

type Entity struct {
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

func fromDeviceInfo(d dbpkg.DeviceInfo) Device {
	return Device{
		MAC:              d.MAC,
		MeterID:          d.MeterID,
		Title:            d.Title,
		Host:             d.Host,
		Port:             d.Port,
		Model:            d.Model,
		Firmware:         d.Firmware,
		ConfigurationURL: d.ConfigurationURL,
		UpdatedAt:        d.UpdatedAt,
	}
}

func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	list, err := c.db.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Device, 0, len(list))
	for _, d := range list {
		out = append(out, fromDeviceInfo(d))
	}
	return out, nil
}

func (c *Client) Device(ctx context.Context, mac string) (*Device, error) {
	d, err := c.db.Device(ctx, mac)
	if err != nil {
		return nil, err
	}
	dev := fromDeviceInfo(d)
	return &dev, nil
}

// Entities lists the entities of one device, or of all devices when mac is empty.
func (c *Client) Entities(ctx context.Context, mac string) ([]Entity, error) {
	list, err := c.db.ListEntities(ctx, mac)
	if err != nil {
		return nil, err
	}
	out := make([]Entity, 0, len(list))
	for _, e := range list {
		out = append(out, Entity(e))
	}
	return out, nil
}

// DeleteDevice removes a device with its entities and latest values.
func (c *Client) DeleteDevice(ctx context.Context, mac string) error {
	return c.db.DeleteDevice(ctx, mac)
}
