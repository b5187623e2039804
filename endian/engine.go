// Package endian provides byte order utilities for decoding vendor binary
// formats whose byte order is only known after inspecting the header.
//
// It combines the ByteOrder and AppendByteOrder interfaces of encoding/binary
// into a single EndianEngine and adds signed and floating point readers, which
// the vendor headers use heavily.
//
//	engine := endian.GetLittleEndianEngine()
//	version := endian.Int32(engine, hdr[2:6])
//	sampleTime := endian.Float64(engine, hdr[16:24])
//
// All functions are safe for concurrent use; engines are stateless.
package endian

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// EndianEngine combines ByteOrder and AppendByteOrder interfaces from encoding/binary
// into a single interface for convenient byte order operations.
//
// This interface is satisfied by binary.LittleEndian and binary.BigEndian.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// CheckEndianness uses a fixed integer value to determine the host's byte order.
func CheckEndianness() binary.ByteOrder {
	// 0x0100 is 256. On a little-endian host the first byte is 0x00.
	var i uint16 = 0x0100

	b := (*[2]byte)(unsafe.Pointer(&i))
	if b[0] == 0x01 {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

func IsNativeLittleEndian() bool {
	return CheckEndianness() == binary.LittleEndian
}

// GetLittleEndianEngine returns the little-endian engine.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine returns the big-endian engine.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}

// Engines returns both engines, little-endian first. Callers probing an
// unknown header try them in this order.
func Engines() []EndianEngine {
	return []EndianEngine{binary.LittleEndian, binary.BigEndian}
}

// Name returns "little" or "big" for the given engine.
func Name(engine EndianEngine) string {
	if engine == GetBigEndianEngine() {
		return "big"
	}

	return "little"
}

// Int16 decodes a signed 16-bit integer from the first two bytes of b.
func Int16(engine EndianEngine, b []byte) int16 {
	return int16(engine.Uint16(b)) //nolint:gosec
}

// Int32 decodes a signed 32-bit integer from the first four bytes of b.
func Int32(engine EndianEngine, b []byte) int32 {
	return int32(engine.Uint32(b)) //nolint:gosec
}

// Float64 decodes an IEEE-754 double from the first eight bytes of b.
func Float64(engine EndianEngine, b []byte) float64 {
	return math.Float64frombits(engine.Uint64(b))
}

// AppendInt16 appends a signed 16-bit integer.
func AppendInt16(engine EndianEngine, dst []byte, v int16) []byte {
	return engine.AppendUint16(dst, uint16(v)) //nolint:gosec
}

// AppendInt32 appends a signed 32-bit integer.
func AppendInt32(engine EndianEngine, dst []byte, v int32) []byte {
	return engine.AppendUint32(dst, uint32(v)) //nolint:gosec
}

// AppendFloat64 appends an IEEE-754 double.
func AppendFloat64(engine EndianEngine, dst []byte, v float64) []byte {
	return engine.AppendUint64(dst, math.Float64bits(v))
}
