package model

import "time"

// Device is one gateway, keyed by its mac address.
type Device struct {
	MAC              string    `gorm:"column:mac;primaryKey"`
	MeterID          string    `gorm:"column:meter_id;index"`
	Title            string    `gorm:"column:title"`
	Host             string    `gorm:"column:host"`
	Port             int       `gorm:"column:port"`
	Manufacturer     string    `gorm:"column:manufacturer"`
	Model            string    `gorm:"column:model"`
	Firmware         string    `gorm:"column:firmware"`
	ConfigurationURL string    `gorm:"column:configuration_url"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Entities []Entity `gorm:"foreignKey:DeviceMAC;references:MAC"`
}

func (Device) TableName() string { return "devices" }

// Entity is one measurement of a device. Rows are inserted once and never
// updated, so a renamed catalog entry does not rewrite existing entities.
type Entity struct {
	StableID    string    `gorm:"column:stable_id;primaryKey"`
	EntityID    string    `gorm:"column:entity_id;index"`
	DeviceMAC   string    `gorm:"column:device_mac;index"`
	Key         string    `gorm:"column:key"`
	Name        string    `gorm:"column:name"`
	Unit        string    `gorm:"column:unit"`
	Category    string    `gorm:"column:category"`
	Aggregation string    `gorm:"column:aggregation"`
	Icon        string    `gorm:"column:icon"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Entity) TableName() string { return "entities" }
