package meterdb

import (
	"context"
	"time"
)

// Latest is the most recent value of one entity.
type Latest struct {
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

// LatestValues returns the latest value of every entity, optionally
// filtered by meter.
func (c *Client) LatestValues(ctx context.Context, meterID string) ([]Latest, error) {
	list, err := c.db.LatestValues(ctx, meterID)
	if err != nil {
		return nil, err
	}
	out := make([]Latest, 0, len(list))
	for _, l := range list {
		out = append(out, Latest(l))
	}
	return out, nil
}
