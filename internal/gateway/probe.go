package gateway

import (
	"context"
	"time"
)

// Identity describes the gateway hardware.
type Identity struct {
	MACAddress      string `json:"mac_address"`
	GatewayModel    string `json:"gateway_model,omitempty"`
	FirmwareRunning string `json:"firmware_running,omitempty"`
}

// Title is the display name a newly configured meter gets.
func (id Identity) Title() string {
	return "Smart Meter (" + id.MACAddress + ")"
}

// Probe performs a single validation fetch against host:port. It never
// retries; the caller decides whether to try again. A payload without a
// mac_address yields *InvalidResponseError.
func Probe(ctx context.Context, host string, port int, timeout time.Duration) (Identity, error) {
	c := NewClient(host, port, timeout)

	snap, err := c.Fetch(ctx)
	if err != nil {
		return Identity{}, err
	}

	mac, ok := snap.Text(KeyMACAddress)
	if !ok || mac == "" {
		return Identity{}, &InvalidResponseError{URL: c.URL(), Reason: "missing " + KeyMACAddress}
	}

	id := Identity{MACAddress: mac}
	id.GatewayModel, _ = snap.Text(KeyGatewayModel)
	id.FirmwareRunning, _ = snap.Text(KeyFirmwareRunning)

	return id, nil
}
