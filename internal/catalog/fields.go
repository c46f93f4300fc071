package catalog

const (
	iconLightning    = "mdi:lightning-bolt"
	iconSolar        = "mdi:solar-power"
	iconFlash        = "mdi:flash"
	iconSolarVariant = "mdi:solar-power-variant"
	iconSine         = "mdi:sine-wave"
	iconCurrent      = "mdi:current-ac"
	iconFire         = "mdi:fire"
)

var defaultFields = []Descriptor{
	{Key: "energy_delivered_tariff1", Name: "Energy Delivered Tariff 1", Unit: "kWh", Category: CategoryEnergy, Aggregation: AggregationTotalIncreasing, Icon: iconLightning},
	{Key: "energy_delivered_tariff2", Name: "Energy Delivered Tariff 2", Unit: "kWh", Category: CategoryEnergy, Aggregation: AggregationTotalIncreasing, Icon: iconLightning},
	{Key: "energy_returned_tariff1", Name: "Energy Returned Tariff 1", Unit: "kWh", Category: CategoryEnergy, Aggregation: AggregationTotalIncreasing, Icon: iconSolar},
	{Key: "energy_returned_tariff2", Name: "Energy Returned Tariff 2", Unit: "kWh", Category: CategoryEnergy, Aggregation: AggregationTotalIncreasing, Icon: iconSolar},
	{Key: "power_delivered_total", Name: "Power Delivered Total", Unit: "kW", Category: CategoryPower, Aggregation: AggregationMeasurement, Icon: iconFlash},
	{Key: "power_returned_total", Name: "Power Returned Total", Unit: "kW", Category: CategoryPower, Aggregation: AggregationMeasurement, Icon: iconSolarVariant},
	{Key: "power_delivered_l1", Name: "Power Delivered L1", Unit: "W", Category: CategoryPower, Aggregation: AggregationMeasurement, Icon: iconFlash},
	{Key: "power_delivered_l2", Name: "Power Delivered L2", Unit: "W", Category: CategoryPower, Aggregation: AggregationMeasurement, Icon: iconFlash},
	{Key: "power_delivered_l3", Name: "Power Delivered L3", Unit: "W", Category: CategoryPower, Aggregation: AggregationMeasurement, Icon: iconFlash},
	{Key: "power_returned_l1", Name: "Power Returned L1", Unit: "W", Category: CategoryPower, Aggregation: AggregationMeasurement, Icon: iconSolarVariant},
	{Key: "power_returned_l2", Name: "Power Returned L2", Unit: "W", Category: CategoryPower, Aggregation: AggregationMeasurement, Icon: iconSolarVariant},
	{Key: "power_returned_l3", Name: "Power Returned L3", Unit: "W", Category: CategoryPower, Aggregation: AggregationMeasurement, Icon: iconSolarVariant},
	{Key: "voltage_l1", Name: "Voltage L1", Unit: "V", Category: CategoryVoltage, Aggregation: AggregationMeasurement, Icon: iconSine},
	{Key: "voltage_l2", Name: "Voltage L2", Unit: "V", Category: CategoryVoltage, Aggregation: AggregationMeasurement, Icon: iconSine},
	{Key: "voltage_l3", Name: "Voltage L3", Unit: "V", Category: CategoryVoltage, Aggregation: AggregationMeasurement, Icon: iconSine},
	{Key: "current_l1", Name: "Current L1", Unit: "A", Category: CategoryCurrent, Aggregation: AggregationMeasurement, Icon: iconCurrent},
	{Key: "current_l2", Name: "Current L2", Unit: "A", Category: CategoryCurrent, Aggregation: AggregationMeasurement, Icon: iconCurrent},
	{Key: "current_l3", Name: "Current L3", Unit: "A", Category: CategoryCurrent, Aggregation: AggregationMeasurement, Icon: iconCurrent},
	{Key: "gas_delivered", Name: "Gas Delivered Total", Unit: "m³", Category: CategoryGas, Aggregation: AggregationTotalIncreasing, Icon: iconFire},
	{Key: "gas_delivered_hour", Name: "Gas Delivered Hour", Unit: "m³", Category: CategoryGas, Aggregation: AggregationMeasurement, Icon: iconFire},
	{Key: "power_delivered_hour", Name: "Power Delivered Hour", Unit: "kWh", Category: CategoryEnergy, Aggregation: AggregationMeasurement, Icon: iconLightning},
	{Key: "power_delivered_netto", Name: "Power Delivered Netto", Unit: "W", Category: CategoryPower, Aggregation: AggregationMeasurement, Icon: iconFlash},
	{Key: "electricity_tariff", Name: "Electricity Tariff", Icon: "mdi:cash"},
	{Key: "wifi_rssi", Name: "WiFi RSSI", Unit: "dBm", Category: CategorySignalStrength, Aggregation: AggregationMeasurement, Icon: "mdi:wifi"},
	{Key: "firmware_running", Name: "Firmware Version", Icon: "mdi:chip"},
	{Key: "firmware_update_available", Name: "Firmware Update Available", Icon: "mdi:update"},
}

// Older gateway firmware reports PascalCase keys.
var legacyAliases = map[string]string{
	"EnergyDeliveredTariff1": "energy_delivered_tariff1",
	"EnergyDeliveredTariff2": "energy_delivered_tariff2",
	"EnergyReturnedTariff1":  "energy_returned_tariff1",
	"EnergyReturnedTariff2":  "energy_returned_tariff2",
	"PowerDelivered_total":   "power_delivered_total",
	"PowerReturned_total":    "power_returned_total",
	"PowerDelivered_l1":      "power_delivered_l1",
	"PowerDelivered_l2":      "power_delivered_l2",
	"PowerDelivered_l3":      "power_delivered_l3",
	"PowerReturned_l1":       "power_returned_l1",
	"PowerReturned_l2":       "power_returned_l2",
	"PowerReturned_l3":       "power_returned_l3",
	"Voltage_l1":             "voltage_l1",
	"Voltage_l2":             "voltage_l2",
	"Voltage_l3":             "voltage_l3",
	"Current_l1":             "current_l1",
	"Current_l2":             "current_l2",
	"Current_l3":             "current_l3",
	"GasDelivered":           "gas_delivered",
	"GasDeliveredHour":       "gas_delivered_hour",
	"PowerDeliveredHour":     "power_delivered_hour",
	"PowerDeliveredNetto":    "power_delivered_netto",
	"ElectricityTariff":      "electricity_tariff",
}

var defaultCatalog = MustNew(defaultFields, legacyAliases)

// Default returns the built-in gateway catalog.
func Default() *Catalog { return defaultCatalog }
