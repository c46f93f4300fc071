package measurement

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartmeter-poller/internal/catalog"
	"smartmeter-poller/internal/gateway"
)

func TestProjectMissingKeyIsUnavailable(t *testing.T) {
	v := Project(catalog.Default(), "voltage_l1", gateway.Snapshot{"voltage_l2": 231.0})
	assert.False(t, v.Available)
	assert.Nil(t, v.Value)
	assert.Nil(t, v.Warning)
}

func TestProjectCoercesNumericString(t *testing.T) {
	v := Project(catalog.Default(), "voltage_l1", gateway.Snapshot{"voltage_l1": "230.5"})
	require.True(t, v.Available)
	f, ok := v.Float()
	require.True(t, ok)
	assert.InDelta(t, 230.5, f, 1e-9)
}

func TestProjectAcceptsNumbers(t *testing.T) {
	cat := catalog.Default()
	for _, raw := range []any{float64(12), 12, int64(12), json.Number("12")} {
		v := Project(cat, "current_l1", gateway.Snapshot{"current_l1": raw})
		f, ok := v.Float()
		require.True(t, ok, "%T", raw)
		assert.InDelta(t, 12.0, f, 0)
	}
}

func TestProjectUnitlessKeepsRaw(t *testing.T) {
	v := Project(catalog.Default(), "electricity_tariff", gateway.Snapshot{"electricity_tariff": "1"})
	require.True(t, v.Available)
	assert.Equal(t, "1", v.Value)
	assert.False(t, v.Numeric)
	assert.Nil(t, v.Warning)
}

func TestProjectCoercionFailureFallsBack(t *testing.T) {
	v := Project(catalog.Default(), "gas_delivered", gateway.Snapshot{"gas_delivered": "n/a"})
	require.True(t, v.Available)
	assert.Equal(t, "n/a", v.Value)
	assert.False(t, v.Numeric)
	require.NotNil(t, v.Warning)
	assert.Equal(t, "gas_delivered", v.Warning.Key)
	assert.Contains(t, v.Warning.Error(), "gas_delivered")

	v = Project(catalog.Default(), "gas_delivered", gateway.Snapshot{"gas_delivered": true})
	assert.Equal(t, true, v.Value)
	assert.NotNil(t, v.Warning)
}

func TestProjectNullIsAvailableWithoutValue(t *testing.T) {
	v := Project(catalog.Default(), "voltage_l1", gateway.Snapshot{"voltage_l1": nil})
	assert.True(t, v.Available)
	assert.Nil(t, v.Value)
	assert.Nil(t, v.Warning)
	assert.Equal(t, "", v.String())
}

func TestProjectReadsLegacyKey(t *testing.T) {
	v := Project(catalog.Default(), "power_delivered_l1", gateway.Snapshot{"PowerDelivered_l1": 412})
	assert.Equal(t, "power_delivered_l1", v.Key)
	f, ok := v.Float()
	require.True(t, ok)
	assert.InDelta(t, 412.0, f, 0)

	// asking with the legacy key resolves to the canonical one
	v = Project(catalog.Default(), "PowerDelivered_l1", gateway.Snapshot{"PowerDelivered_l1": 412})
	assert.Equal(t, "power_delivered_l1", v.Key)
	assert.True(t, v.Available)
}

func TestProjectUnknownKeyPassesThrough(t *testing.T) {
	v := Project(catalog.Default(), "mqtt_server", gateway.Snapshot{"mqtt_server": "10.0.0.2"})
	assert.True(t, v.Available)
	assert.Equal(t, "10.0.0.2", v.Value)
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "230.5", Project(catalog.Default(), "voltage_l1", gateway.Snapshot{"voltage_l1": 230.5}).String())
	assert.Equal(t, "2", Project(catalog.Default(), "electricity_tariff", gateway.Snapshot{"electricity_tariff": "2"}).String())
	assert.Equal(t, "", Project(catalog.Default(), "voltage_l1", gateway.Snapshot{}).String())
}

func TestIdentityDefaultsMAC(t *testing.T) {
	id := Identity(gateway.Snapshot{"gateway_model": "P1"})
	assert.Equal(t, UnknownMAC, id.MACAddress)
	assert.Equal(t, "P1", id.GatewayModel)

	id = Identity(nil)
	assert.Equal(t, UnknownMAC, id.MACAddress)
}

func TestStableIDIsDeterministic(t *testing.T) {
	cat := catalog.Default()

	first := StableID(cat, "AA:BB:CC:DD:EE:FF", "power_delivered_l1")
	assert.Equal(t, "aabbccddeeff_power_delivered_l1", first)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, StableID(cat, "AA:BB:CC:DD:EE:FF", "power_delivered_l1"))
	}

	assert.Equal(t, first, StableID(cat, "aa_bb_cc_dd_ee_ff", "PowerDelivered_l1"))
	assert.Equal(t, "aabbccddeeff_energy_delivered_tariff_1", StableID(cat, "AA:BB:CC:DD:EE:FF", "EnergyDeliveredTariff1"))
}

func TestEntitiesOnlyForPresentFields(t *testing.T) {
	snap := gateway.Snapshot{
		"mac_address":       "AA:BB:CC:DD:EE:FF",
		"voltage_l1":        230.0,
		"PowerDelivered_l1": 100,
		"unknown_new_field": 1,
	}

	ents := Entities(catalog.Default(), snap)
	require.Len(t, ents, 2)
	assert.Equal(t, "power_delivered_l1", ents[0].Key())
	assert.Equal(t, "sensor.smartmeter_power_delivered_l1", ents[0].EntityID)
	assert.Equal(t, "aabbccddeeff_voltage_l1", ents[1].StableID)
	assert.Equal(t, "V", ents[1].Descriptor.Unit)

	assert.True(t, ents[1].Available(catalog.Default(), true, snap))
	assert.False(t, ents[1].Available(catalog.Default(), false, snap))
	assert.False(t, ents[1].Available(catalog.Default(), true, gateway.Snapshot{}))
}

func TestDeviceInfo(t *testing.T) {
	info := Device(gateway.Snapshot{"mac_address": "AA", "firmware_running": "4.1"}, "192.168.1.50", 82)
	assert.Equal(t, DeviceInfo{
		Identifier:       "AA",
		Name:             DeviceName,
		Manufacturer:     Manufacturer,
		Model:            DefaultModel,
		SWVersion:        "4.1",
		ConfigurationURL: "http://192.168.1.50:82",
	}, info)
}

func TestAttributesOnlyOnTariffOne(t *testing.T) {
	snap := gateway.Snapshot{"Equipment_Id": "E0001", "mqtt_configured": false}
	cat := catalog.Default()

	attrs := Attributes(cat, "EnergyDeliveredTariff1", snap)
	require.NotNil(t, attrs)
	assert.Equal(t, "E0001", attrs["equipment_id"])
	assert.Equal(t, false, attrs["mqtt_configured"])
	assert.Nil(t, attrs["mqtt_server"])

	assert.Nil(t, Attributes(cat, "voltage_l1", snap))
}

func TestReadingsMarkStaleUnavailable(t *testing.T) {
	cat := catalog.Default()
	snap := gateway.Snapshot{"mac_address": "AA", "voltage_l1": "230.5"}
	ents := Entities(cat, snap)
	ts := time.Unix(1700000000, 0)

	rs := Readings(cat, "home", ents, snap, true, ts)
	require.Len(t, rs, 1)
	assert.True(t, rs[0].Available)
	assert.Equal(t, "home", rs[0].MeterID)
	assert.Equal(t, ts, rs[0].Timestamp)

	rs = Readings(cat, "home", ents, snap, false, ts)
	assert.False(t, rs[0].Available)
	assert.Equal(t, 230.5, rs[0].Value.Value)
}
