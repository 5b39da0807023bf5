package schema

import (
	"fmt"

	"github.com/roach88/filtergate/internal/filter"
)

// EnumDef declares an enum's external-to-internal value mapping.
// Filters arrive carrying external names; adapters only ever see the
// internal representation, so coercion happens before dispatch.
type EnumDef struct {
	Name   string                  `json:"name" yaml:"name"`
	Values map[string]filter.Value `json:"-" yaml:"-"`

	// RawValues is the serializable form: external name to internal
	// scalar (string or integer). Normalize() populates Values from it.
	RawValues map[string]any `json:"values" yaml:"values"`
}

// Normalize converts RawValues into typed filter values. Call once
// after decoding a table from YAML or JSON.
func (e *EnumDef) Normalize() error {
	if e.Values != nil || len(e.RawValues) == 0 {
		return nil
	}
	e.Values = make(map[string]filter.Value, len(e.RawValues))
	for ext, raw := range e.RawValues {
		v, err := filter.FromJSON(raw)
		if err != nil {
			return fmt.Errorf("enum %s value %q: %w", e.Name, ext, err)
		}
		e.Values[ext] = v
	}
	return nil
}

// Coerce maps one external enum value to its internal representation.
func (e EnumDef) Coerce(v filter.Value) (filter.Value, error) {
	ext, ok := v.(filter.String)
	if !ok {
		return nil, fmt.Errorf("enum %s operand must be a string, got %T", e.Name, v)
	}
	internal, ok := e.Values[string(ext)]
	if !ok {
		return nil, fmt.Errorf("enum %s has no value %q", e.Name, ext)
	}
	return internal, nil
}

// CoerceValue coerces an operand for a field. Non-enum kinds pass
// through untouched. For enum kinds, scalar operands are coerced
// directly and array operands (membership lists, includesAll lists)
// element-wise.
func (t *FieldTable) CoerceValue(d FieldDescriptor, v filter.Value) (filter.Value, error) {
	if d.Kind.Scalar != KindEnum {
		return v, nil
	}
	enum, ok := t.Enum(d.Kind.Enum)
	if !ok {
		return nil, fmt.Errorf("field %q references undefined enum %q", d.Name, d.Kind.Enum)
	}
	if arr, isArr := v.(filter.Array); isArr {
		out := make(filter.Array, len(arr))
		for i, elem := range arr {
			coerced, err := enum.Coerce(elem)
			if err != nil {
				return nil, err
			}
			out[i] = coerced
		}
		return out, nil
	}
	// Null passes through: _isNull takes a boolean operand and never
	// reaches here, but an explicit null comparison stays null.
	if _, isNull := v.(filter.Null); isNull {
		return v, nil
	}
	if b, isBool := v.(filter.Bool); isBool {
		// Boolean operands belong to _isNull / _isEmpty, not to the
		// enum's value space.
		return b, nil
	}
	return enum.Coerce(v)
}
