package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEntriesHaveNames(t *testing.T) {
	c := Default()
	require.Equal(t, 26, c.Len())

	for _, d := range c.Entries() {
		got, ok := c.Lookup(d.Key)
		require.True(t, ok, d.Key)
		assert.NotEmpty(t, got.Name, d.Key)
	}
}

func TestEntriesKeepDeclarationOrder(t *testing.T) {
	entries := Default().Entries()
	assert.Equal(t, "energy_delivered_tariff1", entries[0].Key)
	assert.Equal(t, "firmware_update_available", entries[len(entries)-1].Key)

	// mutating the copy does not leak into the catalog
	entries[0].Name = "changed"
	d, _ := Default().Lookup("energy_delivered_tariff1")
	assert.Equal(t, "Energy Delivered Tariff 1", d.Name)
}

func TestNewRejectsDuplicateKey(t *testing.T) {
	_, err := New([]Descriptor{
		{Key: "voltage_l1", Name: "Voltage L1", Unit: "V"},
		{Key: "voltage_l1", Name: "Voltage L1 again", Unit: "V"},
	}, nil)
	require.ErrorIs(t, err, ErrDuplicateKey)
}

func TestNewRejectsAliasShadowingEntry(t *testing.T) {
	_, err := New([]Descriptor{
		{Key: "voltage_l1", Name: "Voltage L1"},
		{Key: "Voltage_l1", Name: "Voltage L1 legacy"},
	}, map[string]string{"Voltage_l1": "voltage_l1"})
	require.ErrorIs(t, err, ErrDuplicateKey)
}

func TestNewRejectsDanglingAlias(t *testing.T) {
	_, err := New([]Descriptor{{Key: "voltage_l1", Name: "Voltage L1"}}, map[string]string{"Current_l1": "current_l1"})
	require.Error(t, err)
}

func TestNewRejectsEmptyName(t *testing.T) {
	_, err := New([]Descriptor{{Key: "voltage_l1"}}, nil)
	require.ErrorIs(t, err, ErrEmptyName)
}

func TestLookupThroughLegacyAlias(t *testing.T) {
	c := Default()

	d, ok := c.Lookup("PowerDelivered_l1")
	require.True(t, ok)
	assert.Equal(t, "power_delivered_l1", d.Key)
	assert.Equal(t, "W", d.Unit)

	key, ok := c.Resolve("GasDeliveredHour")
	require.True(t, ok)
	assert.Equal(t, "gas_delivered_hour", key)
	assert.Equal(t, []string{"GasDeliveredHour"}, c.Aliases("gas_delivered_hour"))

	_, ok = c.Lookup("mqtt_server")
	assert.False(t, ok)
}

func TestUnitlessFieldsAreNotNumeric(t *testing.T) {
	c := Default()
	for _, key := range []string{"electricity_tariff", "firmware_running", "firmware_update_available"} {
		d, ok := c.Lookup(key)
		require.True(t, ok)
		assert.False(t, d.Numeric(), key)
		assert.Equal(t, CategoryNone, d.Category, key)
	}
}

func TestGasHourKeepsGasCategory(t *testing.T) {
	d, ok := Default().Lookup("gas_delivered_hour")
	require.True(t, ok)
	assert.Equal(t, CategoryGas, d.Category)
	assert.Equal(t, AggregationMeasurement, d.Aggregation)
}
