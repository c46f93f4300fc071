package model

import "time"

// LatestValue holds the most recent projected value of each entity.
// Table: latest_values
// One row per entity, overwritten on every update; there is no history.
type LatestValue struct {
	StableID  string    `gorm:"column:stable_id;primaryKey"`
	MeterID   string    `gorm:"column:meter_id;index"`
	Key       string    `gorm:"column:key"`
	Value     string    `gorm:"column:value"`
	Numeric   *float64  `gorm:"column:numeric"`
	Available bool      `gorm:"column:available"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (LatestValue) TableName() string { return "latest_values" }
