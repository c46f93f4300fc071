package measurement

import (
	"net"
	"strconv"

	"smartmeter-poller/internal/catalog"
	"smartmeter-poller/internal/gateway"
)

const (
	Manufacturer        = "Connectix"
	DefaultModel        = "Smart Meter Gateway"
	DeviceName          = "Smart Meter Gateway"
	entityIDPrefix      = "sensor.smartmeter_"
	attributeCarrierKey = "energy_delivered_tariff1"
)

// Entity is one observable measurement of one gateway. Its metadata is
// fixed when the entity is created.
type Entity struct {
	StableID   string             `json:"stable_id"`
	EntityID   string             `json:"entity_id"`
	DeviceMAC  string             `json:"device_mac"`
	Descriptor catalog.Descriptor `json:"descriptor"`
}

// Key is the canonical catalog key the entity reads.
func (e Entity) Key() string { return e.Descriptor.Key }

// Available is true when the last poll succeeded and the field is present.
func (e Entity) Available(cat *catalog.Catalog, lastSuccess bool, snap gateway.Snapshot) bool {
	if !lastSuccess || snap == nil {
		return false
	}
	_, ok := lookup(cat, e.Key(), snap)

	return ok
}

// Entities builds one entity per catalog field present in snap, in catalog
// order. Fields the snapshot lacks get no entity.
func Entities(cat *catalog.Catalog, snap gateway.Snapshot) []Entity {
	mac := Identity(snap).MACAddress

	var out []Entity
	for _, d := range cat.Entries() {
		if _, ok := lookup(cat, d.Key, snap); !ok {
			continue
		}
		out = append(out, Entity{
			StableID:   StableID(cat, mac, d.Key),
			EntityID:   entityIDPrefix + cat.Token(d.Key),
			DeviceMAC:  mac,
			Descriptor: d,
		})
	}

	return out
}

// DeviceInfo is the device-level metadata shown next to the entities.
type DeviceInfo struct {
	Identifier       string `json:"identifier"`
	Name             string `json:"name"`
	Manufacturer     string `json:"manufacturer"`
	Model            string `json:"model"`
	SWVersion        string `json:"sw_version,omitempty"`
	ConfigurationURL string `json:"configuration_url"`
}

// Device derives DeviceInfo from snap for the gateway at host:port.
func Device(snap gateway.Snapshot, host string, port int) DeviceInfo {
	id := Identity(snap)

	model := id.GatewayModel
	if model == "" {
		model = DefaultModel
	}

	return DeviceInfo{
		Identifier:       id.MACAddress,
		Name:             DeviceName,
		Manufacturer:     Manufacturer,
		Model:            model,
		SWVersion:        id.FirmwareRunning,
		ConfigurationURL: "http://" + net.JoinHostPort(host, strconv.Itoa(port)),
	}
}

// Attributes returns the extra attributes of a field. Only the tariff 1
// delivery counter carries any: the meter and gateway bookkeeping fields.
func Attributes(cat *catalog.Catalog, key string, snap gateway.Snapshot) map[string]any {
	if canonical, _ := cat.Resolve(key); canonical != attributeCarrierKey {
		return nil
	}

	return map[string]any{
		"equipment_id":     snap[gateway.KeyEquipmentID],
		"gas_equipment_id": snap[gateway.KeyGasEquipmentID],
		"startup_time":     snap[gateway.KeyStartupTime],
		"mqtt_configured":  snap[gateway.KeyMQTTConfigured],
		"mqtt_server":      snap[gateway.KeyMQTTServer],
	}
}
