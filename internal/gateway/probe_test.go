package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeReturnsIdentity(t *testing.T) {
	host, port := newGateway(t, http.StatusOK,
		`{"mac_address":"AA:BB:CC:DD:EE:FF","gateway_model":"P1 Dongle Pro","firmware_running":"1.2.3","voltage_l1":230.1}`)

	id, err := Probe(context.Background(), host, port, time.Second)
	require.NoError(t, err)
	assert.Equal(t, Identity{
		MACAddress:      "AA:BB:CC:DD:EE:FF",
		GatewayModel:    "P1 Dongle Pro",
		FirmwareRunning: "1.2.3",
	}, id)
	assert.Equal(t, "Smart Meter (AA:BB:CC:DD:EE:FF)", id.Title())
}

func TestProbeMissingMACIsInvalidResponse(t *testing.T) {
	host, port := newGateway(t, http.StatusOK, `{"gateway_model":"P1 Dongle Pro"}`)

	_, err := Probe(context.Background(), host, port, time.Second)

	var invalid *InvalidResponseError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Reason, KeyMACAddress)
}

func TestProbeRefusedIsConnectionError(t *testing.T) {
	// grab a free port and close it so nothing listens there
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port := splitHostPort(t, l.Addr().String())
	require.NoError(t, l.Close())

	_, err = Probe(context.Background(), host, port, time.Second)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Zero(t, connErr.StatusCode)
	assert.Error(t, connErr.Unwrap())
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, CodeCannotConnect, ErrorCode(&ConnectionError{URL: "u", StatusCode: 503}))
	assert.Equal(t, CodeCannotConnect, ErrorCode(fmt.Errorf("setup: %w", &ConnectionError{URL: "u", Err: errors.New("refused")})))
	assert.Equal(t, CodeInvalidData, ErrorCode(&InvalidResponseError{URL: "u", Reason: "missing mac_address"}))
	assert.Equal(t, CodeUnknown, ErrorCode(errors.New("boom")))
}

func TestProbeRejectsTrailingGarbage(t *testing.T) {
	host, port := newGateway(t, http.StatusOK, `{"mac_address":"AA:BB"} }}} not json`)

	_, err := Probe(context.Background(), host, port, time.Second)

	var invalid *InvalidResponseError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, CodeInvalidData, ErrorCode(err))
}
