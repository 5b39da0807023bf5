package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/filtergate/internal/adapter"
	"github.com/roach88/filtergate/internal/adapter/elastic"
	"github.com/roach88/filtergate/internal/adapter/memory"
	"github.com/roach88/filtergate/internal/adapter/mysql"
	"github.com/roach88/filtergate/internal/adapter/postgres"
	"github.com/roach88/filtergate/internal/adapter/sqlite"
	"github.com/roach88/filtergate/internal/capability"
	"github.com/roach88/filtergate/internal/schema"
)

// Error codes used in JSON output.
const (
	ErrCodeSchema   = "E_SCHEMA"
	ErrCodeFilter   = "E_FILTER"
	ErrCodeCompile  = "E_COMPILE"
	ErrCodeBackend  = "E_BACKEND"
	ErrCodeConfig   = "E_CONFIG"
	ErrCodeScenario = "E_SCENARIO"
	ErrCodeRejected = "E_REJECTED"
)

// SchemaFile is the YAML schema document the CLI consumes: field
// descriptors in compact kind notation plus enum mappings.
type SchemaFile struct {
	Fields []FieldEntry `yaml:"fields"`
	Enums  []EnumEntry  `yaml:"enums,omitempty"`
}

// FieldEntry is one field declaration.
type FieldEntry struct {
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"`
	Column string `yaml:"column,omitempty"`
	Custom bool   `yaml:"custom,omitempty"`
}

// EnumEntry is one enum declaration.
type EnumEntry struct {
	Name   string         `yaml:"name"`
	Values map[string]any `yaml:"values"`
}

// LoadSchemaFile reads a YAML schema file into a field table.
func LoadSchemaFile(path string) (*schema.FieldTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	var sf SchemaFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}
	if len(sf.Fields) == 0 {
		return nil, fmt.Errorf("schema %s declares no fields", path)
	}

	fields := make([]schema.FieldDescriptor, len(sf.Fields))
	for i, f := range sf.Fields {
		kind, err := schema.ParseKind(f.Kind)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		fields[i] = schema.FieldDescriptor{Name: f.Name, Kind: kind, Column: f.Column, Custom: f.Custom}
	}
	enums := make([]schema.EnumDef, len(sf.Enums))
	for i, e := range sf.Enums {
		def := schema.EnumDef{Name: e.Name, RawValues: e.Values}
		if err := def.Normalize(); err != nil {
			return nil, err
		}
		enums[i] = def
	}
	return schema.NewFieldTable(fields, enums)
}

// ReadFilterArg resolves a filter argument: "@path" reads a file, "-"
// reads stdin, anything else is the filter document itself.
func ReadFilterArg(arg string, stdin io.Reader) ([]byte, error) {
	switch {
	case arg == "-":
		return io.ReadAll(stdin)
	case strings.HasPrefix(arg, "@"):
		return os.ReadFile(strings.TrimPrefix(arg, "@"))
	default:
		return []byte(arg), nil
	}
}

// allFeatures enables every optional capability; the CLI compiles
// without a live connection, so nothing can be probed.
var allFeatures = capability.Features{
	NativeArrays: true,
	FullText:     true,
	Trigram:      true,
	Geo:          true,
	JSONPath:     true,
	Explain:      true,
}

// backendIDs lists the selectable backends.
func backendIDs() []string {
	ids := []string{postgres.ID, sqlite.ID, mysql.ID, elastic.ID, memory.ID}
	sort.Strings(ids)
	return ids
}

// buildBackend constructs an adapter by identity with full static
// capabilities.
func buildBackend(id string) (adapter.Adapter, error) {
	switch id {
	case postgres.ID:
		return postgres.New(allFeatures, capability.Limits{}), nil
	case sqlite.ID:
		return sqlite.New(allFeatures, capability.Limits{}), nil
	case mysql.ID:
		return mysql.New(capability.Limits{}), nil
	case elastic.ID:
		return elastic.New(capability.Limits{}), nil
	case memory.ID:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q: must be one of %v", id, backendIDs())
	}
}
