// Package registry builds and stores message descriptors from .proto
// sources. Descriptors are constructed once at schema-registration time and
// are immutable afterwards, so any number of concurrent parse operations can
// share them read-only.
package registry

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/anirudhraja/protostream/schema"
)

// Registry stores the descriptor tables looked up when parsing or
// marshalling a message. Lookups are lock-free; registration may run
// concurrently with lookups but descriptors are never mutated once stored.
type Registry struct {
	// ProtoDirectories are the roots import statements are resolved
	// against, in order.
	ProtoDirectories []string

	descriptors *xsync.Map[string, *schema.Descriptor]
	enums       *xsync.Map[string, *schema.Enum]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		descriptors: xsync.NewMap[string, *schema.Descriptor](),
		enums:       xsync.NewMap[string, *schema.Enum](),
	}
}

// AddProtoDirectory appends a root directory for import resolution.
func (r *Registry) AddProtoDirectory(dir string) {
	r.ProtoDirectories = append(r.ProtoDirectories, dir)
}

// LoadSchema loads a single .proto file (following its imports through the
// configured proto directories) or recursively loads every .proto file under
// a directory.
func (r *Registry) LoadSchema(protoPath string) error {
	info, err := os.Stat(protoPath)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}

	var files []string
	if !info.IsDir() {
		if !strings.HasSuffix(protoPath, ".proto") {
			return fmt.Errorf("file %s is not a .proto file", protoPath)
		}
		files, err = r.collectImports(protoPath)
		if err != nil {
			return err
		}
	} else {
		r.AddProtoDirectory(protoPath)
		err = filepath.WalkDir(protoPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".proto") {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to walk directory: %w", err)
		}
	}

	return r.build(files)
}

// Register stores a hand-built descriptor, for callers that construct
// schemas in code instead of loading .proto files.
func (r *Registry) Register(d *schema.Descriptor) {
	r.descriptors.Store(d.Name, d)
}

// RegisterEnum stores a hand-built enum definition.
func (r *Registry) RegisterEnum(e *schema.Enum) {
	r.enums.Store(e.Name, e)
}

// collectImports returns protoPath plus its transitive imports, resolved
// against the proto directories. Well-known google/protobuf imports are
// skipped; this codec treats them as plain messages when defined locally.
func (r *Registry) collectImports(protoPath string) ([]string, error) {
	visited := make(map[string]struct{})
	var result []string

	var dfs func(path string) error
	dfs = func(path string) error {
		if _, ok := visited[path]; ok {
			return nil
		}
		visited[path] = struct{}{}
		result = append(result, path)

		imports, err := parseImports(path)
		if err != nil {
			return err
		}
		for _, imp := range imports {
			if strings.Contains(imp, "google/protobuf") {
				continue
			}
			full, err := r.findProto(imp)
			if err != nil {
				return err
			}
			if err := dfs(full); err != nil {
				return err
			}
		}
		return nil
	}

	if err := dfs(protoPath); err != nil {
		return nil, err
	}
	return result, nil
}

// findProto resolves an import path against the proto directories.
func (r *Registry) findProto(importPath string) (string, error) {
	importPath = strings.Trim(importPath, `"`)
	for _, dir := range r.ProtoDirectories {
		full := filepath.Join(dir, importPath)
		if _, err := os.Stat(full); err == nil {
			return full, nil
		}
	}
	return "", fmt.Errorf("cannot resolve import %q in proto directories %v", importPath, r.ProtoDirectories)
}

// GetMessage retrieves a message descriptor by fully qualified or bare name.
func (r *Registry) GetMessage(name string) (*schema.Descriptor, error) {
	if d, ok := r.descriptors.Load(name); ok {
		return d, nil
	}
	// Fall back to a suffix match so callers can use unqualified names.
	var found *schema.Descriptor
	r.descriptors.Range(func(fullName string, d *schema.Descriptor) bool {
		if strings.HasSuffix(fullName, "."+name) {
			found = d
			return false
		}
		return true
	})
	if found != nil {
		return found, nil
	}
	return nil, fmt.Errorf("message not found: %s", name)
}

// GetEnum retrieves an enum definition by fully qualified or bare name.
func (r *Registry) GetEnum(name string) (*schema.Enum, error) {
	if e, ok := r.enums.Load(name); ok {
		return e, nil
	}
	var found *schema.Enum
	r.enums.Range(func(fullName string, e *schema.Enum) bool {
		if strings.HasSuffix(fullName, "."+name) {
			found = e
			return false
		}
		return true
	})
	if found != nil {
		return found, nil
	}
	return nil, fmt.Errorf("enum not found: %s", name)
}

// ListMessages returns all registered message names.
func (r *Registry) ListMessages() []string {
	var names []string
	r.descriptors.Range(func(name string, _ *schema.Descriptor) bool {
		names = append(names, name)
		return true
	})
	return names
}

// ListEnums returns all registered enum names.
func (r *Registry) ListEnums() []string {
	var names []string
	r.enums.Range(func(name string, _ *schema.Enum) bool {
		names = append(names, name)
		return true
	})
	return names
}
