package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Tokens are part of stored entity ids; this table pins every one of them.
var frozenTokens = map[string]string{
	"energy_delivered_tariff1":  "energy_delivered_tariff_1",
	"energy_delivered_tariff2":  "energy_delivered_tariff_2",
	"energy_returned_tariff1":   "energy_returned_tariff_1",
	"energy_returned_tariff2":   "energy_returned_tariff_2",
	"power_delivered_total":     "power_delivered_total",
	"power_returned_total":      "power_returned_total",
	"power_delivered_l1":        "power_delivered_l1",
	"power_delivered_l2":        "power_delivered_l2",
	"power_delivered_l3":        "power_delivered_l3",
	"power_returned_l1":         "power_returned_l1",
	"power_returned_l2":         "power_returned_l2",
	"power_returned_l3":         "power_returned_l3",
	"voltage_l1":                "voltage_l1",
	"voltage_l2":                "voltage_l2",
	"voltage_l3":                "voltage_l3",
	"current_l1":                "current_l1",
	"current_l2":                "current_l2",
	"current_l3":                "current_l3",
	"gas_delivered":             "gas_delivered",
	"gas_delivered_hour":        "gas_delivered_hour",
	"power_delivered_hour":      "power_delivered_hour",
	"power_delivered_netto":     "power_delivered_netto",
	"electricity_tariff":        "electricity_tariff",
	"wifi_rssi":                 "wifi_rssi",
	"firmware_running":          "firmware_running",
	"firmware_update_available": "firmware_update_available",
}

func TestTokensAreFrozen(t *testing.T) {
	c := Default()
	assert.Len(t, frozenTokens, c.Len())

	for _, d := range c.Entries() {
		want, ok := frozenTokens[d.Key]
		if assert.True(t, ok, "missing token for %s", d.Key) {
			assert.Equal(t, want, c.Token(d.Key), d.Key)
		}
	}
}

func TestLegacyKeysShareTokens(t *testing.T) {
	c := Default()
	for legacy, canonical := range legacyAliases {
		assert.Equal(t, c.Token(canonical), Normalize(legacy), legacy)
		assert.Equal(t, c.Token(canonical), c.Token(legacy), legacy)
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"PowerDelivered_l1":      "power_delivered_l1",
		"EnergyDeliveredTariff1": "energy_delivered_tariff_1",
		"ElectricityTariff":      "electricity_tariff",
		"PowerDelivered_total":   "power_delivered_total",
		"wifi_rssi":              "wifi_rssi",
		"Voltage_l3":             "voltage_l3",
		"":                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestNormalizeIsStable(t *testing.T) {
	for i := 0; i < 3; i++ {
		assert.Equal(t, "power_delivered_l1", Normalize("power_delivered_l1"))
	}
}
