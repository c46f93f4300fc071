// Package meterdb is a read client for the smart meter registry database.
package meterdb

import (
	"context"
	"encoding/json"

	dbpkg "smartmeter-poller/internal/db"
)

// Client exposes a stable API for third-party packages to access the DB.
type Client struct{ db *dbpkg.DB }

// Open opens the SQLite database (runs migrations) and returns a client.
func Open(path string) (*Client, error) {
	d, err := dbpkg.Open(path)
	if err != nil {
		return nil, err
	}
	return &Client{db: d}, nil
}

// Close closes the underlying DB.
func (c *Client) Close() error { return c.db.Close() }

// StatsJSON returns devices, entities and latest values as JSON.
// An empty meterID includes the latest values of all meters.
func (c *Client) StatsJSON(ctx context.Context, meterID string) ([]byte, error) {
	return c.db.StatsJSON(ctx, meterID)
}

// LatestJSON returns LatestValues encoded as JSON.
func (c *Client) LatestJSON(ctx context.Context, meterID string) ([]byte, error) {
	vals, err := c.LatestValues(ctx, meterID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(vals)
}
