// Package gateway talks to the smart meter gateway's read-only status endpoint.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

const (
	APIPath        = "/smartmeter/api/read"
	DefaultPort    = 82
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 1 << 20
)

// Payload keys the gateway reports besides catalog fields.
const (
	KeyMACAddress      = "mac_address"
	KeyGatewayModel    = "gateway_model"
	KeyFirmwareRunning = "firmware_running"
	KeyEquipmentID     = "Equipment_Id"
	KeyGasEquipmentID  = "GasEquipment_Id"
	KeyStartupTime     = "startup_time"
	KeyMQTTConfigured  = "mqtt_configured"
	KeyMQTTServer      = "mqtt_server"
)

// Snapshot is one decoded status document. Values are JSON scalars
// (float64, string, bool or nil). A Snapshot is never modified after the
// fetch that produced it.
type Snapshot map[string]any

// Has reports whether key is present, even with a null value.
func (s Snapshot) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Text returns the value of key formatted as a string; ok is false when the
// key is missing or null.
func (s Snapshot) Text(key string) (string, bool) {
	v, ok := s[key]
	if !ok || v == nil {
		return "", false
	}
	if str, isStr := v.(string); isStr {
		return str, true
	}

	return fmt.Sprint(v), true
}

// Fetcher retrieves a snapshot from a gateway.
type Fetcher interface {
	Fetch(ctx context.Context) (Snapshot, error)
}

// Client fetches the status document from one gateway.
type Client struct {
	url     string
	timeout time.Duration
	http    *http.Client
}

// URL builds the status endpoint address for host and port.
func URL(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + APIPath
}

// NewClient returns a client with a hard per-request timeout.
// A non-positive timeout falls back to DefaultTimeout.
func NewClient(host string, port int, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if port <= 0 {
		port = DefaultPort
	}

	return &Client{
		url:     URL(host, port),
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) URL() string { return c.url }

// Fetch issues one GET and decodes the JSON object body.
// Transport errors and non-200 statuses yield *ConnectionError,
// undecodable bodies yield *InvalidResponseError.
func (c *Client) Fetch(ctx context.Context) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return nil, &ConnectionError{URL: c.url, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ConnectionError{URL: c.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &ConnectionError{URL: c.url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &ConnectionError{URL: c.url, Err: err}
	}

	// the whole body must be a single JSON value
	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, &InvalidResponseError{URL: c.url, Reason: "decode body", Err: err}
	}
	if snap == nil {
		return nil, &InvalidResponseError{URL: c.url, Reason: "body is not a JSON object"}
	}

	return snap, nil
}
