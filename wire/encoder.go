package wire

// Encoder accumulates wire-format output in an append-only buffer.
type Encoder struct {
	buf []byte
}

// NewEncoder creates a new wire format encoder.
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 64)}
}

// Bytes returns the encoded bytes.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// Reset clears the encoder buffer for reuse.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Grow preallocates capacity for at least n more bytes. Paired with the
// size functions it makes a whole encode a single allocation.
func (e *Encoder) Grow(n int) {
	if cap(e.buf)-len(e.buf) < n {
		grown := make([]byte, len(e.buf), len(e.buf)+n)
		copy(grown, e.buf)
		e.buf = grown
	}
}

// EncodeVarint appends a uint64 as varint.
func (e *Encoder) EncodeVarint(v uint64) {
	e.buf = AppendVarint(e.buf, v)
}

// EncodeTag appends a field tag.
func (e *Encoder) EncodeTag(fieldNumber FieldNumber, wireType WireType) {
	e.buf = AppendVarint(e.buf, uint64(MakeTag(fieldNumber, wireType)))
}

// EncodeFixed32 appends a 32-bit fixed-width value little-endian.
func (e *Encoder) EncodeFixed32(v uint32) {
	e.buf = AppendFixed32(e.buf, v)
}

// EncodeFixed64 appends a 64-bit fixed-width value little-endian.
func (e *Encoder) EncodeFixed64(v uint64) {
	e.buf = AppendFixed64(e.buf, v)
}

// EncodeFloat32 appends a float as fixed32 IEEE-754 bits.
func (e *Encoder) EncodeFloat32(v float32) {
	e.buf = AppendFloat32(e.buf, v)
}

// EncodeFloat64 appends a double as fixed64 IEEE-754 bits.
func (e *Encoder) EncodeFloat64(v float64) {
	e.buf = AppendFloat64(e.buf, v)
}

// EncodeBytes appends a length-delimited byte value.
func (e *Encoder) EncodeBytes(data []byte) {
	e.buf = AppendVarint(e.buf, uint64(len(data)))
	e.buf = append(e.buf, data...)
}

// EncodeString appends a length-delimited string value.
func (e *Encoder) EncodeString(s string) {
	e.buf = AppendVarint(e.buf, uint64(len(s)))
	e.buf = append(e.buf, s...)
}
