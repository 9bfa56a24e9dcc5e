package schema

import "fmt"

// Kind is the closed set of scalar value kinds a decoded field can have.
// It drives which wire-type and decoding path applies for a field.
type Kind int32

const (
	KindUnknown Kind = iota // unrecognized field, classified by wire type only
	KindDouble
	KindFloat
	KindInt32
	KindInt64
	KindUint32
	KindUint64
	KindSint32
	KindSint64
	KindFixed32
	KindFixed64
	KindSfixed32
	KindSfixed64
	KindBool
	KindString
	KindBytes
	KindEnum
	KindMessage
)

var kindNames = map[Kind]string{
	KindUnknown:  "unknown",
	KindDouble:   "double",
	KindFloat:    "float",
	KindInt32:    "int32",
	KindInt64:    "int64",
	KindUint32:   "uint32",
	KindUint64:   "uint64",
	KindSint32:   "sint32",
	KindSint64:   "sint64",
	KindFixed32:  "fixed32",
	KindFixed64:  "fixed64",
	KindSfixed32: "sfixed32",
	KindSfixed64: "sfixed64",
	KindBool:     "bool",
	KindString:   "string",
	KindBytes:    "bytes",
	KindEnum:     "enum",
	KindMessage:  "message",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int32(k))
}

// Packable reports whether a repeated field of this kind may use the packed
// encoding (one length-delimited blob of concatenated raw values). Only
// fixed-width and varint-coded scalars qualify; never string, bytes or
// message.
func (k Kind) Packable() bool {
	switch k {
	case KindDouble, KindFloat,
		KindInt32, KindInt64, KindUint32, KindUint64,
		KindSint32, KindSint64,
		KindFixed32, KindFixed64, KindSfixed32, KindSfixed64,
		KindBool, KindEnum:
		return true
	}
	return false
}

// Field describes one field of a message: its number on the wire, its value
// kind and its shape (singular or repeated, packed or per-element).
type Field struct {
	Name     string
	Number   int32
	Kind     Kind
	Repeated bool
	Packed   bool        // encode policy only; decoding accepts both forms
	MapEntry bool        // repeated synthetic key/value entry folded into a map
	Message  *Descriptor // for KindMessage
	Enum     *Enum       // for KindEnum
}

// zeroValue returns the decoded representation of the field's proto3 zero
// default, used to backfill map entries whose key or value was omitted on
// the wire.
func (f *Field) zeroValue() any {
	if f == nil {
		return nil
	}
	switch f.Kind {
	case KindString:
		return ""
	case KindBytes:
		return []byte(nil)
	case KindBool:
		return false
	case KindInt32, KindSint32, KindSfixed32:
		return int32(0)
	case KindInt64, KindSint64, KindSfixed64:
		return int64(0)
	case KindUint32, KindFixed32:
		return uint32(0)
	case KindUint64, KindFixed64:
		return uint64(0)
	case KindFloat:
		return float32(0)
	case KindDouble:
		return float64(0)
	case KindEnum:
		if f.Enum != nil {
			if name := f.Enum.NameByNumber(0); name != "" {
				return name
			}
		}
		return int32(0)
	}
	return nil
}

// Enum describes an enum type: a name and its declared values.
type Enum struct {
	Name   string
	Values []EnumValue
}

// EnumValue is one declared enum constant.
type EnumValue struct {
	Name   string
	Number int32
}

// NameByNumber returns the declared name for a number, or "" if the number
// is not part of the enum definition.
func (e *Enum) NameByNumber(n int32) string {
	for _, v := range e.Values {
		if v.Number == n {
			return v.Name
		}
	}
	return ""
}

// NumberByName returns the declared number for a name.
func (e *Enum) NumberByName(name string) (int32, bool) {
	for _, v := range e.Values {
		if v.Name == name {
			return v.Number, true
		}
	}
	return 0, false
}

// Descriptor is an immutable mapping from field number to field description
// for one message type. Descriptors are built once at schema-registration
// time and shared read-only by every concurrent parse; they must never be
// mutated after Index has been called.
type Descriptor struct {
	Name   string
	Fields []*Field

	// Sink, when set, overrides the message representation produced for this
	// descriptor. The default builds a map[string]any.
	Sink func() MessageSink

	byNumber map[int32]*Field
}

// NewDescriptor builds a descriptor with its field-number lookup table.
func NewDescriptor(name string, fields ...*Field) *Descriptor {
	d := &Descriptor{Name: name, Fields: fields}
	d.Index()
	return d
}

// Index (re)builds the field-number lookup table. The registry calls this
// after resolving cross-references on descriptors it created empty.
func (d *Descriptor) Index() {
	d.byNumber = make(map[int32]*Field, len(d.Fields))
	for _, f := range d.Fields {
		d.byNumber[f.Number] = f
	}
}

// FieldByNumber returns the field with the given number, or nil if the
// message does not declare it.
func (d *Descriptor) FieldByNumber(n int32) *Field {
	return d.byNumber[n]
}

// FieldByName returns the field with the given name, or nil.
func (d *Descriptor) FieldByName(name string) *Field {
	for _, f := range d.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// NewMessage creates the type-erased handle values are consumed into while
// this message type is being decoded.
func (d *Descriptor) NewMessage() MessageSink {
	if d.Sink != nil {
		return d.Sink()
	}
	return &mapSink{fields: make(map[string]any)}
}

// MessageSink is the consuming side of the dispatch protocol: one generic
// traversal engine can decode any message shape through it without
// per-message generated code. ConsumeField assigns one decoded value,
// Complete finalizes and returns the message representation.
type MessageSink interface {
	ConsumeField(f *Field, value any) error
	Complete() any
}

// mapSink is the default MessageSink: it materializes a message as a
// map[string]any keyed by field name, collecting repeated fields into []any
// and map-entry fields into map[any]any.
type mapSink struct {
	fields map[string]any
}

func (s *mapSink) ConsumeField(f *Field, value any) error {
	switch {
	case f.MapEntry:
		entry, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("map entry for field %s must be a message, got %T", f.Name, value)
		}
		m, _ := s.fields[f.Name].(map[any]any)
		if m == nil {
			m = make(map[any]any)
			s.fields[f.Name] = m
		}
		// Omitted key or value means the proto3 zero default, not nil.
		key, ok := entry["key"]
		if !ok {
			key = entryField(f, "key").zeroValue()
		}
		val, ok := entry["value"]
		if !ok {
			val = entryField(f, "value").zeroValue()
		}
		m[key] = val
	case f.Repeated:
		list, _ := s.fields[f.Name].([]any)
		s.fields[f.Name] = append(list, value)
	default:
		s.fields[f.Name] = value
	}
	return nil
}

func (s *mapSink) Complete() any {
	return s.fields
}

func entryField(f *Field, name string) *Field {
	if f.Message == nil {
		return nil
	}
	return f.Message.FieldByName(name)
}
