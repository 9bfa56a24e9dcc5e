package wire

// ===== PROTOBUF WIRE FORMAT TYPES =====

// WireType represents protobuf wire format types.
type WireType int32

const (
	WireVarint     WireType = 0 // int32, int64, uint32, uint64, sint32, sint64, bool, enum
	WireFixed64    WireType = 1 // fixed64, sfixed64, double
	WireBytes      WireType = 2 // string, bytes, embedded messages, packed repeated fields
	WireStartGroup WireType = 3 // legacy groups, not supported
	WireEndGroup   WireType = 4 // legacy groups, not supported
	WireFixed32    WireType = 5 // fixed32, sfixed32, float
)

// Valid reports whether the wire type is one this codec can decode or skip.
func (wt WireType) Valid() bool {
	switch wt {
	case WireVarint, WireFixed64, WireBytes, WireStartGroup, WireEndGroup, WireFixed32:
		return true
	}
	return false
}

// FieldNumber represents a protobuf field number. Valid field numbers are
// always >= 1; a tag carrying field number 0 signals corruption.
type FieldNumber int32

// Tag represents a protobuf field tag: (field_number << 3) | wire_type.
// Tag 0 is never a legal wire value; the cursor uses it as the
// end-of-message marker returned when input ends cleanly between fields.
type Tag uint32

// MakeTag creates a tag from field number and wire type.
func MakeTag(fieldNumber FieldNumber, wireType WireType) Tag {
	return Tag(uint32(fieldNumber)<<3 | uint32(wireType))
}

// Split parses a tag into field number and wire type.
func (t Tag) Split() (FieldNumber, WireType) {
	return FieldNumber(t >> 3), WireType(t & 0x7)
}

// FieldNumber returns the field number part of the tag.
func (t Tag) FieldNumber() FieldNumber { return FieldNumber(t >> 3) }

// WireType returns the wire type part of the tag.
func (t Tag) WireType() WireType { return WireType(t & 0x7) }
