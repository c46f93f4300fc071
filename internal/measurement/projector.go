// Package measurement derives typed, display-ready values from gateway
// snapshots using the field catalog.
package measurement

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"smartmeter-poller/internal/catalog"
	"smartmeter-poller/internal/gateway"
)

// UnknownMAC stands in for a missing mac_address during steady-state polling.
const UnknownMAC = "unknown"

// CoercionWarning is attached to a Value whose raw field could not be
// converted to a number. The raw value is kept.
type CoercionWarning struct {
	Key string
	Raw any
	Err error
}

func (w *CoercionWarning) Error() string {
	return fmt.Sprintf("field %s: cannot coerce %v (%T) to a number: %v", w.Key, w.Raw, w.Raw, w.Err)
}

func (w *CoercionWarning) Unwrap() error { return w.Err }

// Value is the projection of one field from one snapshot.
type Value struct {
	Key       string           `json:"key"`
	Available bool             `json:"available"`
	Value     any              `json:"value"`
	Numeric   bool             `json:"numeric"`
	Warning   *CoercionWarning `json:"-"`
}

// Float returns the numeric value when the projection coerced one.
func (v Value) Float() (float64, bool) {
	if !v.Numeric {
		return 0, false
	}
	f, ok := v.Value.(float64)

	return f, ok
}

// String formats the value for text sinks; unavailable values are empty.
func (v Value) String() string {
	if !v.Available || v.Value == nil {
		return ""
	}
	if f, ok := v.Float(); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	return fmt.Sprint(v.Value)
}

// Project derives the value of key from snap. A key missing from the
// snapshot projects as unavailable. Fields with a unit are coerced to
// float64; when that fails the raw value is returned with a warning.
func Project(cat *catalog.Catalog, key string, snap gateway.Snapshot) Value {
	canonical, known := cat.Resolve(key)
	if !known {
		canonical = key
	}
	out := Value{Key: canonical}

	raw, ok := lookup(cat, canonical, snap)
	if !ok {
		return out
	}
	out.Available = true
	out.Value = raw

	desc, known := cat.Lookup(canonical)
	if !known || !desc.Numeric() || raw == nil {
		return out
	}

	f, err := toFloat(raw)
	if err != nil {
		out.Warning = &CoercionWarning{Key: canonical, Raw: raw, Err: err}
		return out
	}
	out.Value = f
	out.Numeric = true

	return out
}

// lookup finds the canonical key or one of its legacy aliases.
func lookup(cat *catalog.Catalog, key string, snap gateway.Snapshot) (any, bool) {
	if v, ok := snap[key]; ok {
		return v, true
	}
	for _, alt := range cat.Aliases(key) {
		if v, ok := snap[alt]; ok {
			return v, true
		}
	}

	return nil, false
}

func toFloat(raw any) (float64, error) {
	var f float64

	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, err
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %v", f)
	}

	return f, nil
}

// Identity extracts the gateway identity from snap and never fails.
func Identity(snap gateway.Snapshot) gateway.Identity {
	id := gateway.Identity{MACAddress: UnknownMAC}
	if mac, ok := snap.Text(gateway.KeyMACAddress); ok && mac != "" {
		id.MACAddress = mac
	}
	id.GatewayModel, _ = snap.Text(gateway.KeyGatewayModel)
	id.FirmwareRunning, _ = snap.Text(gateway.KeyFirmwareRunning)

	return id
}

// NormalizeMAC lowercases mac and strips ':' and '_' separators.
func NormalizeMAC(mac string) string {
	return strings.ToLower(strings.NewReplacer(":", "", "_", "").Replace(mac))
}

// StableID is the persistent identifier of one field of one gateway.
func StableID(cat *catalog.Catalog, mac, key string) string {
	return NormalizeMAC(mac) + "_" + cat.Token(key)
}
