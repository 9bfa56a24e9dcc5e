package wire

import (
	"encoding/binary"
	"math"
)

// Fixed-width primitives: little-endian byte reinterpretation. Float and
// double travel as the IEEE-754 bit patterns of fixed32/fixed64.

// Fixed32Size is the wire size of a fixed32 value.
const Fixed32Size = 4

// Fixed64Size is the wire size of a fixed64 value.
const Fixed64Size = 8

// AppendFixed32 appends v little-endian and returns the extended buffer.
func AppendFixed32(buf []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(buf, v)
}

// AppendFixed64 appends v little-endian and returns the extended buffer.
func AppendFixed64(buf []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(buf, v)
}

// AppendFloat32 appends the IEEE-754 bits of v as fixed32.
func AppendFloat32(buf []byte, v float32) []byte {
	return AppendFixed32(buf, math.Float32bits(v))
}

// AppendFloat64 appends the IEEE-754 bits of v as fixed64.
func AppendFloat64(buf []byte, v float64) []byte {
	return AppendFixed64(buf, math.Float64bits(v))
}
