// Package protostream is a schema-aware protobuf wire-format codec. It
// encodes and decodes the binary tag/length/value stream without generated
// per-message code, allocating decoded values from per-parse arenas, and
// supports both whole-buffer and incremental chunked input.
package protostream

import (
	"fmt"

	"github.com/anirudhraja/protostream/registry"
	"github.com/anirudhraja/protostream/schema"
	"github.com/anirudhraja/protostream/wire"
)

// Protostream provides schema-aware protobuf operations without generated
// code. It is safe for concurrent use: the registry tables are lock-free
// and each Parse/Marshal call owns its own cursor, arena and encoder.
type Protostream struct {
	registry *registry.Registry
}

// New creates a new Protostream instance.
func New() *Protostream {
	return &Protostream{
		registry: registry.NewRegistry(),
	}
}

// LoadSchema loads a .proto file (with its imports) or every .proto file
// under a directory into the registry.
func (p *Protostream) LoadSchema(protoPath string) error {
	return p.registry.LoadSchema(protoPath)
}

// AddProtoDirectory adds a root directory used to resolve import statements.
func (p *Protostream) AddProtoDirectory(dir string) {
	p.registry.AddProtoDirectory(dir)
}

// Parse decodes protobuf bytes from a contiguous buffer into a field-name
// keyed map. String and bytes values alias the parse's arena; copy them if
// they must outlive the returned map.
func (p *Protostream) Parse(data []byte, messageType string, opts ...wire.Option) (map[string]any, error) {
	desc, err := p.registry.GetMessage(messageType)
	if err != nil {
		return nil, fmt.Errorf("message type not found: %s", messageType)
	}
	return wire.Parse(data, desc, opts...)
}

// Marshal encodes a field-name keyed map to protobuf bytes using schema
// information. The total size is computed first, so the output buffer is
// allocated exactly once.
func (p *Protostream) Marshal(data map[string]any, messageType string) ([]byte, error) {
	desc, err := p.registry.GetMessage(messageType)
	if err != nil {
		return nil, fmt.Errorf("message type not found: %s", messageType)
	}
	return wire.EncodeMessage(data, desc)
}

// NewStreamParser creates an incremental parser for the message type: feed
// it chunks as they arrive and it suspends, rather than blocks, whenever a
// value straddles the delivered bytes.
func (p *Protostream) NewStreamParser(messageType string, opts ...wire.Option) (*wire.Parser, error) {
	desc, err := p.registry.GetMessage(messageType)
	if err != nil {
		return nil, fmt.Errorf("message type not found: %s", messageType)
	}
	return wire.NewParser(desc, opts...), nil
}

// Descriptor returns the registered descriptor for a message type.
func (p *Protostream) Descriptor(messageType string) (*schema.Descriptor, error) {
	return p.registry.GetMessage(messageType)
}

// GetRegistry exposes the underlying registry.
func (p *Protostream) GetRegistry() *registry.Registry { return p.registry }

// ListMessages returns all registered message names.
func (p *Protostream) ListMessages() []string { return p.registry.ListMessages() }

// ListEnums returns all registered enum names.
func (p *Protostream) ListEnums() []string { return p.registry.ListEnums() }
