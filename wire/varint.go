package wire

// Varint primitives: base-128 little-endian groups, continuation bit in the
// high bit of each byte. A 64-bit varint occupies at most 10 bytes.

const maxVarintLen = 10

// AppendVarint appends v in varint encoding and returns the extended buffer.
func AppendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// parseVarint decodes one varint from the front of b.
// It returns the value and the number of bytes consumed. n == 0 means b ends
// before the continuation chain terminates; n < 0 means the chain exceeded
// 10 bytes (malformed).
func parseVarint(b []byte) (v uint64, n int) {
	var shift uint
	for i := 0; i < len(b); i++ {
		if i >= maxVarintLen {
			return 0, -1
		}
		c := b[i]
		if shift < 64 {
			v |= uint64(c&0x7f) << shift
		}
		if c&0x80 == 0 {
			return v, i + 1
		}
		shift += 7
	}
	if len(b) >= maxVarintLen {
		return 0, -1
	}
	return 0, 0
}

// VarintSize returns the number of bytes AppendVarint emits for v.
func VarintSize(v uint64) int {
	switch {
	case v < 1<<7:
		return 1
	case v < 1<<14:
		return 2
	case v < 1<<21:
		return 3
	case v < 1<<28:
		return 4
	case v < 1<<35:
		return 5
	case v < 1<<42:
		return 6
	case v < 1<<49:
		return 7
	case v < 1<<56:
		return 8
	case v < 1<<63:
		return 9
	default:
		return 10
	}
}

// TagSize returns the encoded size of a field tag with the given number.
func TagSize(fieldNumber FieldNumber) int {
	return VarintSize(uint64(MakeTag(fieldNumber, WireVarint)))
}

// BytesSize returns the encoded size of a length-delimited byte value.
func BytesSize(data []byte) int {
	return VarintSize(uint64(len(data))) + len(data)
}

// StringSize returns the encoded size of a length-delimited string value.
func StringSize(s string) int {
	return VarintSize(uint64(len(s))) + len(s)
}

// ===== ZIGZAG ENCODING =====

// EncodeZigZag32 maps a signed 32-bit integer to an unsigned value whose
// varint encoding stays short for small magnitudes of either sign.
func EncodeZigZag32(v int32) uint64 {
	return uint64((uint32(v) << 1) ^ uint32(v>>31))
}

// EncodeZigZag64 maps a signed 64-bit integer the same way.
func EncodeZigZag64(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// DecodeZigZag32 undoes EncodeZigZag32.
func DecodeZigZag32(encoded uint64) int32 {
	return int32((uint32(encoded) >> 1) ^ uint32(-int32(encoded&1)))
}

// DecodeZigZag64 undoes EncodeZigZag64.
func DecodeZigZag64(encoded uint64) int64 {
	return int64((encoded >> 1) ^ uint64(-int64(encoded&1)))
}
