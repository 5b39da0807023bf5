// Package schema holds the per-entity metadata the compiler consumes:
// filterable field descriptors, enum value mappings, registered custom
// filter functions, and the authorized field set resolved by the
// authorization layer. How this metadata is derived from storage
// declarations is out of scope; the engine only reads it.
package schema

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
)

// ScalarKind is the closed set of scalar field kinds.
type ScalarKind string

const (
	KindString ScalarKind = "string"
	KindInt    ScalarKind = "int"
	KindFloat  ScalarKind = "float"
	KindBool   ScalarKind = "bool"
	KindDate   ScalarKind = "date"
	KindEnum   ScalarKind = "enum"
	KindGeo    ScalarKind = "geo"
	KindJSON   ScalarKind = "json"
)

// FieldKind is a field's semantic type: a scalar kind, optionally
// wrapped in an array, with the enum name attached for enum kinds.
type FieldKind struct {
	Scalar ScalarKind `json:"scalar" yaml:"scalar"`
	Array  bool       `json:"array,omitempty" yaml:"array,omitempty"`
	Enum   string     `json:"enum,omitempty" yaml:"enum,omitempty"`
}

func (k FieldKind) String() string {
	s := string(k.Scalar)
	if k.Scalar == KindEnum && k.Enum != "" {
		s = fmt.Sprintf("enum(%s)", k.Enum)
	}
	if k.Array {
		return "[" + s + "]"
	}
	return s
}

// Scalar returns a non-array FieldKind.
func Scalar(s ScalarKind) FieldKind {
	return FieldKind{Scalar: s}
}

// ArrayOf returns an array FieldKind with the given element kind.
func ArrayOf(s ScalarKind) FieldKind {
	return FieldKind{Scalar: s, Array: true}
}

// EnumKind returns an enum FieldKind referencing a named EnumDef.
func EnumKind(name string) FieldKind {
	return FieldKind{Scalar: KindEnum, Enum: name}
}

// ParseKind decodes the compact kind notation used by schema files and
// test scenarios: "int", "[]string" for arrays, "enum:Name" for enums,
// "[]enum:Name" for enum arrays.
func ParseKind(spec string) (FieldKind, error) {
	array := strings.HasPrefix(spec, "[]")
	base := strings.TrimPrefix(spec, "[]")
	if enum, ok := strings.CutPrefix(base, "enum:"); ok {
		if enum == "" {
			return FieldKind{}, fmt.Errorf("enum kind missing name")
		}
		return FieldKind{Scalar: KindEnum, Array: array, Enum: enum}, nil
	}
	scalar := ScalarKind(base)
	switch scalar {
	case KindString, KindInt, KindFloat, KindBool, KindDate, KindGeo, KindJSON:
	default:
		return FieldKind{}, fmt.Errorf("unknown kind %q", spec)
	}
	return FieldKind{Scalar: scalar, Array: array}, nil
}

// FieldDescriptor describes one filterable field of an entity.
//
// A field is either storage-backed (Column names the backend column or
// document property) or custom (Custom is true and a CustomFilterFunc
// must be registered under the field name; the adapter is bypassed
// entirely for such fields).
type FieldDescriptor struct {
	Name   string    `json:"name" yaml:"name"`
	Kind   FieldKind `json:"kind" yaml:"kind"`
	Column string    `json:"column,omitempty" yaml:"column,omitempty"`
	Custom bool      `json:"custom,omitempty" yaml:"custom,omitempty"`
}

// StorageColumn returns the backend column for a storage-backed field,
// defaulting to the snake_case form of the field name.
func (d FieldDescriptor) StorageColumn() string {
	if d.Column != "" {
		return d.Column
	}
	return strcase.ToSnake(d.Name)
}

// FieldTable is the descriptor lookup for one target entity.
type FieldTable struct {
	fields map[string]FieldDescriptor
	enums  map[string]EnumDef
}

// NewFieldTable builds a table from descriptors and enum definitions.
// Duplicate field names and enum kinds referencing undefined enums are
// construction errors, surfaced immediately rather than at compile time.
func NewFieldTable(fields []FieldDescriptor, enums []EnumDef) (*FieldTable, error) {
	t := &FieldTable{
		fields: make(map[string]FieldDescriptor, len(fields)),
		enums:  make(map[string]EnumDef, len(enums)),
	}
	for _, e := range enums {
		if _, dup := t.enums[e.Name]; dup {
			return nil, fmt.Errorf("duplicate enum %q", e.Name)
		}
		t.enums[e.Name] = e
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("field descriptor with empty name")
		}
		if _, dup := t.fields[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		if f.Kind.Scalar == KindEnum {
			if _, ok := t.enums[f.Kind.Enum]; !ok {
				return nil, fmt.Errorf("field %q references undefined enum %q", f.Name, f.Kind.Enum)
			}
		}
		t.fields[f.Name] = f
	}
	return t, nil
}

// Field looks up a descriptor by field name.
func (t *FieldTable) Field(name string) (FieldDescriptor, bool) {
	d, ok := t.fields[name]
	return d, ok
}

// Enum looks up an enum definition by name.
func (t *FieldTable) Enum(name string) (EnumDef, bool) {
	e, ok := t.enums[name]
	return e, ok
}
