package registry

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	protoparser "github.com/yoheimuta/go-protoparser/v4"
	protoparserparser "github.com/yoheimuta/go-protoparser/v4/parser"

	"github.com/anirudhraja/protostream/schema"
)

// scalarKinds maps .proto scalar type names to value kinds.
var scalarKinds = map[string]schema.Kind{
	"double":   schema.KindDouble,
	"float":    schema.KindFloat,
	"int32":    schema.KindInt32,
	"int64":    schema.KindInt64,
	"uint32":   schema.KindUint32,
	"uint64":   schema.KindUint64,
	"sint32":   schema.KindSint32,
	"sint64":   schema.KindSint64,
	"fixed32":  schema.KindFixed32,
	"fixed64":  schema.KindFixed64,
	"sfixed32": schema.KindSfixed32,
	"sfixed64": schema.KindSfixed64,
	"bool":     schema.KindBool,
	"string":   schema.KindString,
	"bytes":    schema.KindBytes,
}

// parsedFile is one .proto source after go-protoparser.
type parsedFile struct {
	path    string
	pkg     string
	syntax  string
	imports []string
	proto   *protoparserparser.Proto
}

// parseFile runs go-protoparser over one file and extracts the file-level
// facts the builder needs.
func parseFile(path string) (*parsedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open proto file: %w", err)
	}
	defer f.Close()

	proto, err := protoparser.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	pf := &parsedFile{path: path, syntax: "proto3", proto: proto}
	for _, body := range proto.ProtoBody {
		switch b := body.(type) {
		case *protoparserparser.Package:
			pf.pkg = b.Name
		case *protoparserparser.Syntax:
			pf.syntax = strings.Trim(b.ProtobufVersion, `"`)
		case *protoparserparser.Import:
			pf.imports = append(pf.imports, strings.Trim(b.Location, `"`))
		}
	}
	return pf, nil
}

// parseImports returns the import paths of one file.
func parseImports(path string) ([]string, error) {
	pf, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	return pf.imports, nil
}

// builder accumulates descriptors during a LoadSchema call. Pass 1 registers
// every message and enum name with an empty placeholder so pass 2 can
// resolve forward, nested and mutually recursive references; pass 2 fills in
// the fields and indexes the lookup tables.
type builder struct {
	registry    *Registry
	descriptors map[string]*schema.Descriptor
	enums       map[string]*schema.Enum
}

func (r *Registry) build(files []string) error {
	b := &builder{
		registry:    r,
		descriptors: make(map[string]*schema.Descriptor),
		enums:       make(map[string]*schema.Enum),
	}
	// Include what earlier LoadSchema calls registered, so cross-file
	// references keep resolving.
	r.descriptors.Range(func(name string, d *schema.Descriptor) bool {
		b.descriptors[name] = d
		return true
	})
	r.enums.Range(func(name string, e *schema.Enum) bool {
		b.enums[name] = e
		return true
	})

	parsed := make([]*parsedFile, 0, len(files))
	for _, path := range files {
		pf, err := parseFile(path)
		if err != nil {
			return err
		}
		parsed = append(parsed, pf)
	}

	// Pass 1: register all names.
	for _, pf := range parsed {
		for _, body := range pf.proto.ProtoBody {
			switch v := body.(type) {
			case *protoparserparser.Message:
				b.registerMessage(pf.pkg, v)
			case *protoparserparser.Enum:
				b.registerEnum(pf.pkg, v)
			}
		}
	}

	// Pass 2: build field definitions.
	for _, pf := range parsed {
		for _, body := range pf.proto.ProtoBody {
			if msg, ok := body.(*protoparserparser.Message); ok {
				if err := b.buildMessage(pf, joinName(pf.pkg, msg.MessageName), msg); err != nil {
					return err
				}
			}
		}
	}

	// Publish: index every descriptor, then store. Nothing mutates them
	// after this point.
	for name, d := range b.descriptors {
		d.Index()
		r.descriptors.Store(name, d)
	}
	for name, e := range b.enums {
		r.enums.Store(name, e)
	}
	return nil
}

func (b *builder) registerMessage(scope string, msg *protoparserparser.Message) {
	full := joinName(scope, msg.MessageName)
	if _, ok := b.descriptors[full]; !ok {
		b.descriptors[full] = &schema.Descriptor{Name: full}
	}
	for _, body := range msg.MessageBody {
		switch v := body.(type) {
		case *protoparserparser.Message:
			b.registerMessage(full, v)
		case *protoparserparser.Enum:
			b.registerEnum(full, v)
		}
	}
}

func (b *builder) registerEnum(scope string, enum *protoparserparser.Enum) {
	full := joinName(scope, enum.EnumName)
	e := &schema.Enum{Name: full}
	for _, body := range enum.EnumBody {
		if ef, ok := body.(*protoparserparser.EnumField); ok {
			n, err := strconv.ParseInt(ef.Number, 10, 32)
			if err != nil {
				continue
			}
			e.Values = append(e.Values, schema.EnumValue{Name: ef.Ident, Number: int32(n)})
		}
	}
	b.enums[full] = e
}

func (b *builder) buildMessage(pf *parsedFile, full string, msg *protoparserparser.Message) error {
	d := b.descriptors[full]
	for _, body := range msg.MessageBody {
		switch v := body.(type) {
		case *protoparserparser.Field:
			f, err := b.buildField(pf, full, v)
			if err != nil {
				return fmt.Errorf("message %s: %w", full, err)
			}
			d.Fields = append(d.Fields, f)
		case *protoparserparser.MapField:
			f, err := b.buildMapField(pf, full, v)
			if err != nil {
				return fmt.Errorf("message %s: %w", full, err)
			}
			d.Fields = append(d.Fields, f)
		case *protoparserparser.Oneof:
			// Oneof members decode like ordinary optional fields; last
			// value on the wire wins.
			for _, of := range v.OneofFields {
				f, err := b.buildSimpleField(pf, full, of.Type, of.FieldName, of.FieldNumber, false, of.FieldOptions)
				if err != nil {
					return fmt.Errorf("message %s: %w", full, err)
				}
				d.Fields = append(d.Fields, f)
			}
		case *protoparserparser.Message:
			if err := b.buildMessage(pf, joinName(full, v.MessageName), v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) buildField(pf *parsedFile, scope string, v *protoparserparser.Field) (*schema.Field, error) {
	return b.buildSimpleField(pf, scope, v.Type, v.FieldName, v.FieldNumber, v.IsRepeated, v.FieldOptions)
}

func (b *builder) buildSimpleField(pf *parsedFile, scope, typeName, fieldName, fieldNumber string, repeated bool, opts []*protoparserparser.FieldOption) (*schema.Field, error) {
	number, err := strconv.ParseInt(fieldNumber, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("field %s: bad field number %q", fieldName, fieldNumber)
	}
	f := &schema.Field{
		Name:     fieldName,
		Number:   int32(number),
		Repeated: repeated,
	}
	if err := b.resolveType(scope, typeName, f); err != nil {
		return nil, fmt.Errorf("field %s: %w", fieldName, err)
	}
	if repeated && f.Kind.Packable() {
		f.Packed = pf.syntax == "proto3"
		switch packedOption(opts) {
		case "true":
			f.Packed = true
		case "false":
			f.Packed = false
		}
	}
	return f, nil
}

func (b *builder) buildMapField(pf *parsedFile, scope string, v *protoparserparser.MapField) (*schema.Field, error) {
	number, err := strconv.ParseInt(v.FieldNumber, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("map field %s: bad field number %q", v.MapName, v.FieldNumber)
	}

	keyField := &schema.Field{Name: "key", Number: 1}
	if kind, ok := scalarKinds[v.KeyType]; ok && kind != schema.KindDouble && kind != schema.KindFloat && kind != schema.KindBytes {
		keyField.Kind = kind
	} else {
		return nil, fmt.Errorf("map field %s: invalid key type %s", v.MapName, v.KeyType)
	}
	valueField := &schema.Field{Name: "value", Number: 2}
	if err := b.resolveType(scope, v.Type, valueField); err != nil {
		return nil, fmt.Errorf("map field %s: %w", v.MapName, err)
	}

	// The synthetic entry message protobuf defines for each map field.
	entryName := joinName(scope, upperCamel(v.MapName)+"Entry")
	entry := schema.NewDescriptor(entryName, keyField, valueField)
	b.descriptors[entryName] = entry

	return &schema.Field{
		Name:     v.MapName,
		Number:   int32(number),
		Kind:     schema.KindMessage,
		Repeated: true,
		MapEntry: true,
		Message:  entry,
	}, nil
}

// resolveType assigns the kind (and message/enum reference) for a field's
// declared type name.
func (b *builder) resolveType(scope, typeName string, f *schema.Field) error {
	if kind, ok := scalarKinds[typeName]; ok {
		f.Kind = kind
		return nil
	}
	for _, candidate := range b.candidates(scope, typeName) {
		if d, ok := b.descriptors[candidate]; ok {
			f.Kind = schema.KindMessage
			f.Message = d
			return nil
		}
		if e, ok := b.enums[candidate]; ok {
			f.Kind = schema.KindEnum
			f.Enum = e
			return nil
		}
	}
	return fmt.Errorf("unable to resolve type name: %s", typeName)
}

// candidates lists the fully qualified names a type reference may resolve
// to, innermost scope first, the way protobuf name resolution works.
func (b *builder) candidates(scope, typeName string) []string {
	if strings.HasPrefix(typeName, ".") {
		return []string{strings.TrimPrefix(typeName, ".")}
	}
	if scope == "" {
		return []string{typeName}
	}
	var out []string
	parts := strings.Split(scope, ".")
	for len(parts) > 0 {
		out = append(out, strings.Join(parts, ".")+"."+typeName)
		parts = parts[:len(parts)-1]
	}
	return append(out, typeName)
}

func packedOption(opts []*protoparserparser.FieldOption) string {
	for _, o := range opts {
		if o.OptionName == "packed" {
			return o.Constant
		}
	}
	return ""
}

func joinName(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

// upperCamel converts a snake_case field name to the UpperCamelCase form
// protobuf uses for synthetic map entry type names.
func upperCamel(s string) string {
	out := make([]byte, 0, len(s))
	upperNext := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' {
			upperNext = true
			continue
		}
		if upperNext && c >= 'a' && c <= 'z' {
			c = c - 'a' + 'A'
		}
		out = append(out, c)
		upperNext = false
	}
	return string(out)
}
