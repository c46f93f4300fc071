package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartmeter-poller/internal/collector"
	"smartmeter-poller/internal/gateway"
)

type staticFetcher gateway.Snapshot

func (f staticFetcher) Fetch(context.Context) (gateway.Snapshot, error) {
	return gateway.Snapshot(f), nil
}

func newTestServer(t *testing.T, setup bool) *Server {
	t.Helper()

	cfg := collector.RootConfig{Meters: []collector.MeterConfig{
		{MeterID: "home", Host: "192.0.2.10", Port: 82},
	}}
	mgr := collector.NewManager(cfg, collector.ManagerOptions{
		NewFetcher: func(collector.MeterConfig) gateway.Fetcher {
			return staticFetcher{
				"mac_address":        "AA:BB:CC:DD:EE:FF",
				"power_delivered_l1": 512,
				"voltage_l1":         "230.5",
			}
		},
	})

	if setup {
		m, _ := mgr.Meter("home")
		require.NoError(t, m.Setup(context.Background()))
		t.Cleanup(func() { _ = m.Teardown(context.Background()) })
	}

	return New(":0", mgr, nil, nil)
}

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Engine().ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	return w, body
}

func TestHealth(t *testing.T) {
	w, body := get(t, newTestServer(t, false), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "starting", body["status"])

	w, body = get(t, newTestServer(t, true), "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["ready"])
}

func TestListMeters(t *testing.T) {
	w, body := get(t, newTestServer(t, true), "/api/v1/meters")
	require.Equal(t, http.StatusOK, w.Code)

	data := body["data"].([]any)
	require.Len(t, data, 1)
	meter := data[0].(map[string]any)
	assert.Equal(t, "home", meter["meter_id"])
	assert.Equal(t, "Smart Meter (AA:BB:CC:DD:EE:FF)", meter["title"])
	assert.Equal(t, true, meter["last_success"])
}

func TestGetMeter(t *testing.T) {
	s := newTestServer(t, true)

	w, body := get(t, s, "/api/v1/meters/home")
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Len(t, data["entities"], 2)

	w, body = get(t, s, "/api/v1/meters/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "meter not found", body["error"])
}

func TestMeasurements(t *testing.T) {
	s := newTestServer(t, true)

	w, body := get(t, s, "/api/v1/meters/home/measurements?available=true")
	require.Equal(t, http.StatusOK, w.Code)

	data := body["data"].([]any)
	require.Len(t, data, 2)
	first := data[0].(map[string]any)
	assert.Equal(t, "aabbccddeeff_power_delivered_l1", first["stable_id"])
	value := first["value"].(map[string]any)
	assert.Equal(t, 512.0, value["value"])

	w, _ = get(t, s, "/api/v1/meters/home/measurements?available=maybe")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCatalog(t *testing.T) {
	w, body := get(t, newTestServer(t, false), "/api/v1/catalog")
	require.Equal(t, http.StatusOK, w.Code)

	data := body["data"].([]any)
	assert.Len(t, data, 26)
	first := data[0].(map[string]any)
	assert.Equal(t, "energy_delivered_tariff1", first["key"])
	assert.Equal(t, "energy_delivered_tariff_1", first["token"])
	assert.Contains(t, first["aliases"], "EnergyDeliveredTariff1")
}
