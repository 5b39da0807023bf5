package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/filtergate/internal/filter"
	"github.com/roach88/filtergate/internal/schema"
)

// Scenario is one declarative conformance case.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Fields declares the entity's filterable fields.
	Fields []FieldSpec `yaml:"fields"`

	// Enums declares the enum mappings referenced by enum fields.
	Enums []EnumSpec `yaml:"enums,omitempty"`

	// Authorized restricts the fields the request may filter on.
	// Empty means all fields are authorized.
	Authorized []string `yaml:"authorized,omitempty"`

	// Filter is the JSON filter document under test.
	Filter string `yaml:"filter"`

	// Fold requests case-insensitive text matching.
	Fold bool `yaml:"fold,omitempty"`

	// Dataset is the fixture the compiled filter runs over. Every row
	// carries an integer "id".
	Dataset []map[string]any `yaml:"dataset,omitempty"`

	// ExpectIDs are the ids of the rows the filter must match, in
	// dataset order.
	ExpectIDs []int64 `yaml:"expect_ids,omitempty"`

	// ExpectError, when set, asserts that compilation fails with an
	// error containing this substring. Mutually exclusive with
	// ExpectIDs.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// FieldSpec is the YAML form of a field descriptor. Kind is written
// compactly: "int", "string", "[]string" for arrays, "enum:Name" for
// enums.
type FieldSpec struct {
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"`
	Column string `yaml:"column,omitempty"`
	Custom bool   `yaml:"custom,omitempty"`
}

// EnumSpec is the YAML form of an enum definition.
type EnumSpec struct {
	Name   string         `yaml:"name"`
	Values map[string]any `yaml:"values"`
}

// LoadScenario reads and validates a single scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

// LoadScenarios reads every *.yaml file in a directory, sorted by
// filename for deterministic test ordering.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("missing name")
	}
	if s.Filter == "" {
		return fmt.Errorf("missing filter")
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("missing fields")
	}
	if s.ExpectError != "" && len(s.ExpectIDs) > 0 {
		return fmt.Errorf("expect_error and expect_ids are mutually exclusive")
	}
	return nil
}

// FieldTable materializes the scenario's field declarations.
func (s *Scenario) FieldTable() (*schema.FieldTable, error) {
	fields := make([]schema.FieldDescriptor, len(s.Fields))
	for i, f := range s.Fields {
		kind, err := schema.ParseKind(f.Kind)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		fields[i] = schema.FieldDescriptor{
			Name:   f.Name,
			Kind:   kind,
			Column: f.Column,
			Custom: f.Custom,
		}
	}
	enums := make([]schema.EnumDef, len(s.Enums))
	for i, e := range s.Enums {
		def := schema.EnumDef{Name: e.Name, RawValues: e.Values}
		if err := def.Normalize(); err != nil {
			return nil, err
		}
		enums[i] = def
	}
	return schema.NewFieldTable(fields, enums)
}

// AuthorizedSet resolves the scenario's authorization declaration.
func (s *Scenario) AuthorizedSet() schema.AuthorizedFieldSet {
	if len(s.Authorized) == 0 {
		return schema.AllFields()
	}
	return schema.FieldsNamed(s.Authorized...)
}

// Expr parses the scenario's filter document.
func (s *Scenario) Expr() (filter.Expr, error) {
	return filter.Parse([]byte(s.Filter))
}
