package modbus

import (
	"encoding/binary"
	"fmt"
	"math"

	"smartmeter-poller/internal/catalog"
	"smartmeter-poller/internal/model"
)

// RegistersPerPoint is the width of one float32 value.
const RegistersPerPoint = 2

// RegisterMap lays out the numeric fields of cat: one float32 per
// unit-bearing entry, in catalog order, starting at register 0.
func RegisterMap(cat *catalog.Catalog) []model.RegisterPoint {
	var out []model.RegisterPoint
	for _, d := range cat.Entries() {
		if !d.Numeric() {
			continue
		}
		out = append(out, model.RegisterPoint{
			Address: uint16(len(out) * RegistersPerPoint),
			Key:     d.Key,
			Name:    d.Name,
			Unit:    d.Unit,
		})
	}
	return out
}

// EncodeFloat32 splits f into two registers, high word first (ABCD).
func EncodeFloat32(f float32) (hi, lo uint16) {
	bits := math.Float32bits(f)
	return uint16(bits >> 16), uint16(bits)
}

// DecodeFloat32 is the inverse of EncodeFloat32.
func DecodeFloat32(hi, lo uint16) float32 {
	return math.Float32frombits(uint32(hi)<<16 | uint32(lo))
}

// DecodeRegisters turns the raw bytes of a register read starting at
// address 0 into readings for points. NaN values read as unavailable.
func DecodeRegisters(points []model.RegisterPoint, raw []byte) ([]model.RegisterReading, error) {
	out := make([]model.RegisterReading, 0, len(points))
	for _, p := range points {
		off := int(p.Address) * 2
		if off+4 > len(raw) {
			return nil, ErrAddrOutOfRange(p.Address)
		}
		v := DecodeFloat32(binary.BigEndian.Uint16(raw[off:off+2]), binary.BigEndian.Uint16(raw[off+2:off+4]))
		out = append(out, model.RegisterReading{
			RegisterPoint: p,
			Value:         v,
			Available:     !math.IsNaN(float64(v)),
		})
	}
	return out, nil
}

// ErrAddrOutOfRange returns a formatted error compatible with server.go style.
func ErrAddrOutOfRange(addr uint16) error {
	return fmt.Errorf("address %d out of range", addr)
}
