package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGateway(t *testing.T, status int, body string) (host string, port int) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != APIPath {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return splitHostPort(t, srv.Listener.Addr().String())
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()

	h, p, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(p)
	require.NoError(t, err)

	return h, port
}

func TestURL(t *testing.T) {
	assert.Equal(t, "http://192.168.1.50:82/smartmeter/api/read", URL("192.168.1.50", 82))
	assert.Equal(t, "http://[fe80::1]:82/smartmeter/api/read", URL("fe80::1", 82))
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("meter.local", 0, 0)
	assert.Equal(t, "http://meter.local:82/smartmeter/api/read", c.URL())
	assert.Equal(t, DefaultTimeout, c.timeout)
}

func TestFetchDecodesObject(t *testing.T) {
	host, port := newGateway(t, http.StatusOK, `{"mac_address":"AA:BB","voltage_l1":"230.5","wifi_rssi":-61,"mqtt_configured":true,"gas_delivered":null}`)

	snap, err := NewClient(host, port, time.Second).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "230.5", snap["voltage_l1"])
	assert.InDelta(t, -61.0, snap["wifi_rssi"], 0)
	assert.Equal(t, true, snap["mqtt_configured"])
	assert.True(t, snap.Has("gas_delivered"))

	_, ok := snap.Text("gas_delivered")
	assert.False(t, ok)
	rssi, ok := snap.Text("wifi_rssi")
	assert.True(t, ok)
	assert.Equal(t, "-61", rssi)
}

func TestFetchNon200IsConnectionError(t *testing.T) {
	host, port := newGateway(t, http.StatusServiceUnavailable, `busy`)

	_, err := NewClient(host, port, time.Second).Fetch(context.Background())

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, http.StatusServiceUnavailable, connErr.StatusCode)
	assert.Contains(t, err.Error(), "HTTP 503")
}

func TestFetchMalformedBodyIsInvalidResponse(t *testing.T) {
	for _, body := range []string{
		`{"mac_address":`,
		`[1,2,3]`,
		`null`,
		`{"mac_address":"AA:BB"} }}} not json`,
		`{"mac_address":"AA:BB"}{"mac_address":"CC:DD"}`,
	} {
		host, port := newGateway(t, http.StatusOK, body)

		_, err := NewClient(host, port, time.Second).Fetch(context.Background())

		var invalid *InvalidResponseError
		assert.ErrorAs(t, err, &invalid, body)
	}
}

func TestFetchTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	host, port := splitHostPort(t, srv.Listener.Addr().String())

	start := time.Now()
	_, err := NewClient(host, port, 100*time.Millisecond).Fetch(context.Background())

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFetchHonoursCancellation(t *testing.T) {
	host, port := newGateway(t, http.StatusOK, `{}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(host, port, time.Second).Fetch(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
