package wire

import (
	"fmt"
	"math"
	"sort"
	"unsafe"

	"github.com/anirudhraja/protostream/arena"
	"github.com/anirudhraja/protostream/schema"
)

// WireTypeOf returns the wire type a singular value of the given kind
// travels as.
func WireTypeOf(k schema.Kind) WireType {
	switch k {
	case schema.KindString, schema.KindBytes, schema.KindMessage:
		return WireBytes
	case schema.KindFloat, schema.KindFixed32, schema.KindSfixed32:
		return WireFixed32
	case schema.KindDouble, schema.KindFixed64, schema.KindSfixed64:
		return WireFixed64
	default:
		return WireVarint
	}
}

// FieldCodec binds one field shape to its three operations: write a tagged
// value, compute the exact size that write would emit, and read a value from
// a cursor positioned just past the tag. Message-agnostic code (generated or
// hand-written) composes these per field.
type FieldCodec struct {
	Field *schema.Field
}

// NewFieldCodec creates the codec for a field.
func NewFieldCodec(f *schema.Field) *FieldCodec {
	return &FieldCodec{Field: f}
}

// ===== WRITE / SIZE =====

// WriteTagged appends tag plus value. Singular fields equal to their proto3
// zero default are omitted entirely; repeated fields write either one packed
// blob or one tag+value per element, per the field's packed policy.
func (c *FieldCodec) WriteTagged(e *Encoder, value any) error {
	f := c.Field
	switch {
	case f.MapEntry:
		return c.writeMap(e, value)
	case f.Repeated:
		return c.writeRepeated(e, value)
	case f.Kind == schema.KindMessage:
		if value == nil {
			return nil
		}
		data, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("message value for %s must be map[string]any, got %T", f.Name, value)
		}
		size, err := SizeMessage(f.Message, data)
		if err != nil {
			return wrapWithField(err, f.Name)
		}
		e.EncodeTag(FieldNumber(f.Number), WireBytes)
		e.EncodeVarint(uint64(size))
		return wrapWithField(appendMessage(e, f.Message, data), f.Name)
	default:
		zero, err := isZeroDefault(f, value)
		if err != nil {
			return wrapWithField(err, f.Name)
		}
		if zero {
			return nil
		}
		e.EncodeTag(FieldNumber(f.Number), WireTypeOf(f.Kind))
		return wrapWithField(c.writeScalar(e, value), f.Name)
	}
}

// Size returns exactly the number of bytes WriteTagged would emit for
// value. It never writes; the two functions must stay in lockstep for the
// two-pass encode.
func (c *FieldCodec) Size(value any) (int, error) {
	f := c.Field
	switch {
	case f.MapEntry:
		return c.sizeMap(value)
	case f.Repeated:
		return c.sizeRepeated(value)
	case f.Kind == schema.KindMessage:
		if value == nil {
			return 0, nil
		}
		data, ok := value.(map[string]any)
		if !ok {
			return 0, fmt.Errorf("message value for %s must be map[string]any, got %T", f.Name, value)
		}
		size, err := SizeMessage(f.Message, data)
		if err != nil {
			return 0, wrapWithField(err, f.Name)
		}
		return TagSize(FieldNumber(f.Number)) + VarintSize(uint64(size)) + size, nil
	default:
		zero, err := isZeroDefault(f, value)
		if err != nil || zero {
			return 0, wrapWithField(err, f.Name)
		}
		n, err := c.scalarSize(value)
		if err != nil {
			return 0, wrapWithField(err, f.Name)
		}
		return TagSize(FieldNumber(f.Number)) + n, nil
	}
}

func (c *FieldCodec) writeRepeated(e *Encoder, value any) error {
	f := c.Field
	elems, err := asSlice(value)
	if err != nil {
		return wrapWithField(err, f.Name)
	}
	if len(elems) == 0 {
		return nil
	}
	if f.Packed && f.Kind.Packable() {
		// One tag, one length-delimited blob of concatenated raw values.
		payload := 0
		for _, v := range elems {
			n, err := c.scalarSize(v)
			if err != nil {
				return wrapWithField(err, f.Name)
			}
			payload += n
		}
		e.EncodeTag(FieldNumber(f.Number), WireBytes)
		e.EncodeVarint(uint64(payload))
		for _, v := range elems {
			if err := c.writeScalar(e, v); err != nil {
				return wrapWithField(err, f.Name)
			}
		}
		return nil
	}
	for _, v := range elems {
		if f.Kind == schema.KindMessage {
			data, ok := v.(map[string]any)
			if !ok {
				return wrapWithField(fmt.Errorf("message element must be map[string]any, got %T", v), f.Name)
			}
			size, err := SizeMessage(f.Message, data)
			if err != nil {
				return wrapWithField(err, f.Name)
			}
			e.EncodeTag(FieldNumber(f.Number), WireBytes)
			e.EncodeVarint(uint64(size))
			if err := appendMessage(e, f.Message, data); err != nil {
				return wrapWithField(err, f.Name)
			}
			continue
		}
		e.EncodeTag(FieldNumber(f.Number), WireTypeOf(f.Kind))
		if err := c.writeScalar(e, v); err != nil {
			return wrapWithField(err, f.Name)
		}
	}
	return nil
}

func (c *FieldCodec) sizeRepeated(value any) (int, error) {
	f := c.Field
	elems, err := asSlice(value)
	if err != nil {
		return 0, wrapWithField(err, f.Name)
	}
	if len(elems) == 0 {
		return 0, nil
	}
	if f.Packed && f.Kind.Packable() {
		payload := 0
		for _, v := range elems {
			n, err := c.scalarSize(v)
			if err != nil {
				return 0, wrapWithField(err, f.Name)
			}
			payload += n
		}
		return TagSize(FieldNumber(f.Number)) + VarintSize(uint64(payload)) + payload, nil
	}
	total := 0
	for _, v := range elems {
		if f.Kind == schema.KindMessage {
			data, ok := v.(map[string]any)
			if !ok {
				return 0, wrapWithField(fmt.Errorf("message element must be map[string]any, got %T", v), f.Name)
			}
			size, err := SizeMessage(f.Message, data)
			if err != nil {
				return 0, wrapWithField(err, f.Name)
			}
			total += TagSize(FieldNumber(f.Number)) + VarintSize(uint64(size)) + size
			continue
		}
		n, err := c.scalarSize(v)
		if err != nil {
			return 0, wrapWithField(err, f.Name)
		}
		total += TagSize(FieldNumber(f.Number)) + n
	}
	return total, nil
}

func (c *FieldCodec) writeMap(e *Encoder, value any) error {
	f := c.Field
	entries, err := asMapEntries(value)
	if err != nil {
		return wrapWithField(err, f.Name)
	}
	for _, entry := range entries {
		size, err := SizeMessage(f.Message, entry)
		if err != nil {
			return wrapWithField(err, f.Name)
		}
		e.EncodeTag(FieldNumber(f.Number), WireBytes)
		e.EncodeVarint(uint64(size))
		if err := appendMessage(e, f.Message, entry); err != nil {
			return wrapWithField(err, f.Name)
		}
	}
	return nil
}

func (c *FieldCodec) sizeMap(value any) (int, error) {
	f := c.Field
	entries, err := asMapEntries(value)
	if err != nil {
		return 0, wrapWithField(err, f.Name)
	}
	total := 0
	for _, entry := range entries {
		size, err := SizeMessage(f.Message, entry)
		if err != nil {
			return 0, wrapWithField(err, f.Name)
		}
		total += TagSize(FieldNumber(f.Number)) + VarintSize(uint64(size)) + size
	}
	return total, nil
}

// writeScalar appends one untagged scalar value.
func (c *FieldCodec) writeScalar(e *Encoder, value any) error {
	f := c.Field
	switch f.Kind {
	case schema.KindString:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		e.EncodeString(s)
	case schema.KindBytes:
		b, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("expected []byte, got %T", value)
		}
		e.EncodeBytes(b)
	case schema.KindFloat:
		fv, err := asFloat64(value)
		if err != nil {
			return err
		}
		e.EncodeFloat32(float32(fv))
	case schema.KindDouble:
		fv, err := asFloat64(value)
		if err != nil {
			return err
		}
		e.EncodeFloat64(fv)
	case schema.KindFixed32:
		u, err := asUint64(value)
		if err != nil {
			return err
		}
		e.EncodeFixed32(uint32(u))
	case schema.KindFixed64:
		u, err := asUint64(value)
		if err != nil {
			return err
		}
		e.EncodeFixed64(u)
	case schema.KindSfixed32:
		i, err := asInt64(value)
		if err != nil {
			return err
		}
		e.EncodeFixed32(uint32(int32(i)))
	case schema.KindSfixed64:
		i, err := asInt64(value)
		if err != nil {
			return err
		}
		e.EncodeFixed64(uint64(i))
	default:
		u, err := c.scalarVarint(value)
		if err != nil {
			return err
		}
		e.EncodeVarint(u)
	}
	return nil
}

// scalarSize mirrors writeScalar.
func (c *FieldCodec) scalarSize(value any) (int, error) {
	switch c.Field.Kind {
	case schema.KindString:
		s, ok := value.(string)
		if !ok {
			return 0, fmt.Errorf("expected string, got %T", value)
		}
		return StringSize(s), nil
	case schema.KindBytes:
		b, ok := value.([]byte)
		if !ok {
			return 0, fmt.Errorf("expected []byte, got %T", value)
		}
		return BytesSize(b), nil
	case schema.KindFloat, schema.KindFixed32, schema.KindSfixed32:
		return Fixed32Size, nil
	case schema.KindDouble, schema.KindFixed64, schema.KindSfixed64:
		return Fixed64Size, nil
	default:
		u, err := c.scalarVarint(value)
		if err != nil {
			return 0, err
		}
		return VarintSize(u), nil
	}
}

// scalarVarint maps a varint-coded value to its wire representation.
func (c *FieldCodec) scalarVarint(value any) (uint64, error) {
	f := c.Field
	switch f.Kind {
	case schema.KindInt32, schema.KindInt64:
		i, err := asInt64(value)
		return uint64(i), err
	case schema.KindUint32, schema.KindUint64:
		return asUint64(value)
	case schema.KindSint32:
		i, err := asInt64(value)
		return EncodeZigZag32(int32(i)), err
	case schema.KindSint64:
		i, err := asInt64(value)
		return EncodeZigZag64(i), err
	case schema.KindBool:
		b, ok := value.(bool)
		if !ok {
			return 0, fmt.Errorf("expected bool, got %T", value)
		}
		if b {
			return 1, nil
		}
		return 0, nil
	case schema.KindEnum:
		n, err := asEnumNumber(f.Enum, value)
		return uint64(int64(n)), err
	default:
		return 0, fmt.Errorf("kind %s is not varint-coded", f.Kind)
	}
}

// ===== READ =====

// ReadInto reads one value of the field's kind; the cursor must already be
// positioned past the tag. Length-delimited scalars are materialized in the
// arena; nested messages recurse under a pushed limit with a decremented
// depth allowance.
func (c *FieldCodec) ReadInto(cur Cursor, a *arena.Arena) (any, error) {
	f := c.Field
	switch f.Kind {
	case schema.KindString, schema.KindBytes:
		return readLenValue(cur, f.Kind, a)
	case schema.KindMessage:
		return readMessageValue(cur, f.Message, a, DefaultMaxDepth)
	default:
		return readScalar(cur, f)
	}
}

// AddEntries decodes repeated-field entries from the wire representation the
// encoder actually chose: a packed blob when the announced wire type is
// length-delimited and the kind is packable, a single tagged element
// otherwise. Each decoded element is handed to consume in wire order.
func (c *FieldCodec) AddEntries(cur Cursor, wt WireType, a *arena.Arena, consume func(any) error) error {
	f := c.Field
	if wt == WireBytes && f.Kind.Packable() {
		length, err := cur.ReadVarint()
		if err != nil {
			return err
		}
		prev, err := cur.PushLimit(int(length))
		if err != nil {
			return err
		}
		for !cur.AtLimit() {
			v, err := readScalar(cur, f)
			if err != nil {
				return err
			}
			if err := consume(v); err != nil {
				return err
			}
		}
		cur.PopLimit(prev)
		return nil
	}
	if wt != WireTypeOf(f.Kind) {
		return fmt.Errorf("%w: wire type %d for repeated %s field", ErrInvalidTag, wt, f.Kind)
	}
	v, err := c.ReadInto(cur, a)
	if err != nil {
		return err
	}
	return consume(v)
}

// readScalar reads one varint- or fixed-coded value of the field's kind.
func readScalar(cur Cursor, f *schema.Field) (any, error) {
	switch f.Kind {
	case schema.KindInt32:
		v, err := cur.ReadVarint()
		return int32(v), err
	case schema.KindInt64:
		v, err := cur.ReadVarint()
		return int64(v), err
	case schema.KindUint32:
		v, err := cur.ReadVarint32()
		return v, err
	case schema.KindUint64:
		return cur.ReadVarint()
	case schema.KindSint32:
		v, err := cur.ReadVarint()
		return DecodeZigZag32(v), err
	case schema.KindSint64:
		v, err := cur.ReadVarint()
		return DecodeZigZag64(v), err
	case schema.KindBool:
		v, err := cur.ReadVarint()
		return v != 0, err
	case schema.KindEnum:
		v, err := cur.ReadVarint()
		if err != nil {
			return nil, err
		}
		n := int32(v)
		if f.Enum != nil {
			if name := f.Enum.NameByNumber(n); name != "" {
				return name, nil
			}
		}
		return n, nil
	case schema.KindFixed32:
		return cur.ReadFixed32()
	case schema.KindFixed64:
		return cur.ReadFixed64()
	case schema.KindSfixed32:
		v, err := cur.ReadFixed32()
		return int32(v), err
	case schema.KindSfixed64:
		v, err := cur.ReadFixed64()
		return int64(v), err
	case schema.KindFloat:
		v, err := cur.ReadFixed32()
		return math.Float32frombits(v), err
	case schema.KindDouble:
		v, err := cur.ReadFixed64()
		return math.Float64frombits(v), err
	default:
		return nil, fmt.Errorf("kind %s has no scalar wire form", f.Kind)
	}
}

// readLenValue reads a length-delimited string or bytes payload into arena
// storage. The returned value aliases the arena region and stays valid until
// the arena is cleared; with a nil arena it falls back to a heap copy.
func readLenValue(cur Cursor, k schema.Kind, a *arena.Arena) (any, error) {
	length, err := cur.ReadVarint()
	if err != nil {
		return nil, err
	}
	n := int(length)
	// Bound the declared length against the remaining input before
	// allocating, so a corrupt length cannot demand absurd storage.
	prev, err := cur.PushLimit(n)
	if err != nil {
		return nil, err
	}
	cur.PopLimit(prev)
	view, err := allocScratch(a, n)
	if err != nil {
		return nil, err
	}
	if err := cur.ReadFull(view); err != nil {
		return nil, err
	}
	return finishLenValue(k, view), nil
}

func allocScratch(a *arena.Arena, n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrTruncatedMessage
	}
	if a == nil {
		return make([]byte, n), nil
	}
	view, _, err := a.AllocBytes(n)
	return view, err
}

// finishLenValue converts a filled payload view into its field value. The
// string header aliases the view without copying, so string values share the
// arena's lifetime.
func finishLenValue(k schema.Kind, view []byte) any {
	if k == schema.KindBytes {
		return view
	}
	if len(view) == 0 {
		return ""
	}
	return unsafe.String(&view[0], len(view))
}

// ===== VALUE COERCION =====

func asInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("expected signed integer, got %T", value)
	}
}

func asUint64(value any) (uint64, error) {
	switch v := value.(type) {
	case uint32:
		return uint64(v), nil
	case uint64:
		return v, nil
	case uint:
		return uint64(v), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("negative value %d for unsigned field", v)
		}
		return uint64(v), nil
	default:
		return 0, fmt.Errorf("expected unsigned integer, got %T", value)
	}
}

func asFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("expected float, got %T", value)
	}
}

func asEnumNumber(e *schema.Enum, value any) (int32, error) {
	switch v := value.(type) {
	case int32:
		return v, nil
	case int:
		return int32(v), nil
	case string:
		if e == nil {
			return 0, fmt.Errorf("enum name %q without enum definition", v)
		}
		if n, ok := e.NumberByName(v); ok {
			return n, nil
		}
		return 0, fmt.Errorf("unknown value %q for enum %s", v, e.Name)
	default:
		return 0, fmt.Errorf("expected enum number or name, got %T", value)
	}
}

// asSlice widens the supported concrete slice types to []any.
func asSlice(value any) ([]any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	case []int32:
		return widen(v), nil
	case []int64:
		return widen(v), nil
	case []int:
		return widen(v), nil
	case []uint32:
		return widen(v), nil
	case []uint64:
		return widen(v), nil
	case []float32:
		return widen(v), nil
	case []float64:
		return widen(v), nil
	case []bool:
		return widen(v), nil
	case []string:
		return widen(v), nil
	case [][]byte:
		return widen(v), nil
	case []map[string]any:
		return widen(v), nil
	default:
		return nil, fmt.Errorf("repeated field value must be a slice, got %T", value)
	}
}

func widen[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// asMapEntries converts a map value into key/value entry messages.
func asMapEntries(value any) ([]map[string]any, error) {
	var entries []map[string]any
	switch v := value.(type) {
	case nil:
		return nil, nil
	case map[any]any:
		for k, val := range v {
			entries = append(entries, map[string]any{"key": k, "value": val})
		}
	case map[string]any:
		for k, val := range v {
			entries = append(entries, map[string]any{"key": k, "value": val})
		}
	default:
		return nil, fmt.Errorf("map field value must be a map, got %T", value)
	}
	// Deterministic entry order keeps encodes reproducible.
	sort.Slice(entries, func(i, j int) bool {
		return fmt.Sprint(entries[i]["key"]) < fmt.Sprint(entries[j]["key"])
	})
	return entries, nil
}

// isZeroDefault reports whether a singular value equals the proto3 implicit
// default and is therefore omitted from the wire.
func isZeroDefault(f *schema.Field, value any) (bool, error) {
	if value == nil {
		return true, nil
	}
	switch f.Kind {
	case schema.KindString:
		s, ok := value.(string)
		if !ok {
			return false, fmt.Errorf("expected string, got %T", value)
		}
		return s == "", nil
	case schema.KindBytes:
		b, ok := value.([]byte)
		if !ok {
			return false, fmt.Errorf("expected []byte, got %T", value)
		}
		return len(b) == 0, nil
	case schema.KindBool:
		b, ok := value.(bool)
		if !ok {
			return false, fmt.Errorf("expected bool, got %T", value)
		}
		return !b, nil
	case schema.KindFloat, schema.KindDouble:
		fv, err := asFloat64(value)
		return fv == 0, err
	case schema.KindUint32, schema.KindUint64, schema.KindFixed32, schema.KindFixed64:
		u, err := asUint64(value)
		return u == 0, err
	case schema.KindEnum:
		n, err := asEnumNumber(f.Enum, value)
		return n == 0, err
	default:
		i, err := asInt64(value)
		return i == 0, err
	}
}

// ===== MESSAGE ENCODE =====

// EncodeMessage encodes a message map using its descriptor. The total size
// is computed first so the output is written in a single pass into a buffer
// of exactly the right capacity.
func EncodeMessage(data map[string]any, desc *schema.Descriptor) ([]byte, error) {
	size, err := SizeMessage(desc, data)
	if err != nil {
		return nil, err
	}
	e := NewEncoder()
	e.Grow(size)
	if err := appendMessage(e, desc, data); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// SizeMessage returns the encoded size of a message map, mirroring
// appendMessage exactly.
func SizeMessage(desc *schema.Descriptor, data map[string]any) (int, error) {
	total := 0
	for _, f := range sortedFields(desc) {
		value, ok := data[f.Name]
		if !ok {
			continue
		}
		n, err := NewFieldCodec(f).Size(value)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func appendMessage(e *Encoder, desc *schema.Descriptor, data map[string]any) error {
	for _, f := range sortedFields(desc) {
		value, ok := data[f.Name]
		if !ok {
			continue
		}
		if err := NewFieldCodec(f).WriteTagged(e, value); err != nil {
			return err
		}
	}
	return nil
}

// sortedFields returns the descriptor's fields in field-number order.
func sortedFields(desc *schema.Descriptor) []*schema.Field {
	fields := make([]*schema.Field, len(desc.Fields))
	copy(fields, desc.Fields)
	sort.Slice(fields, func(i, j int) bool {
		return fields[i].Number < fields[j].Number
	})
	return fields
}
