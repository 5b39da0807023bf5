package filter

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Value is a sealed interface over the leaf value types a filter may
// carry. Only Null, String, Int, Float, Bool, and Array implement it.
//
// Unlike content-addressed identity payloads, filter values permit
// floats: they are compared against user data, never hashed for
// equality of meaning (the signature hash renders them through a fixed
// decimal formatting, see signature.go).
type Value interface {
	filterValue() // sealed
}

// Null represents an explicit JSON null operand.
type Null struct{}

func (Null) filterValue() {}

// String represents a string operand.
type String string

func (String) filterValue() {}

// Int represents an integer operand. Always int64.
type Int int64

func (Int) filterValue() {}

// Float represents a floating-point operand.
type Float float64

func (Float) filterValue() {}

// Bool represents a boolean operand.
type Bool bool

func (Bool) filterValue() {}

// Array represents a list operand, e.g. the right-hand side of _in.
type Array []Value

func (Array) filterValue() {}

// FromJSON converts a value decoded by encoding/json (with UseNumber)
// into a Value. Objects are rejected: operator operands are scalars or
// flat lists, never nested documents.
func FromJSON(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q is neither int64 nor float64", val.String())
		}
		return Float(f), nil
	case float64:
		// Decoders without UseNumber hand us float64 for every number.
		if val == float64(int64(val)) {
			return Int(int64(val)), nil
		}
		return Float(val), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			fv, err := FromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = fv
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unsupported operand type %T", v)
	}
}

// Native unwraps a Value into the Go type a database/sql driver or a
// JSON encoder expects: nil, string, int64, float64, bool, or []any.
func Native(v Value) any {
	switch val := v.(type) {
	case Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Native(elem)
		}
		return out
	default:
		return nil
	}
}

// Equal reports deep equality of two values. Int and Float compare
// numerically across kinds, so Int(3) equals Float(3.0); every other
// cross-kind pair is unequal.
func Equal(a, b Value) bool {
	if an, aok := numeric(a); aok {
		bn, bok := numeric(b)
		return bok && an == bn
	}
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders two values. Returns -1, 0, or 1, or an error when the
// pair has no defined ordering (bools, nulls, arrays, mixed kinds).
// Ints and Floats order numerically across kinds; strings order
// lexicographically by byte value.
func Compare(a, b Value) (int, error) {
	if an, aok := numeric(a); aok {
		if bn, bok := numeric(b); bok {
			switch {
			case an < bn:
				return -1, nil
			case an > bn:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	if as, aok := a.(String); aok {
		if bs, bok := b.(String); bok {
			return strings.Compare(string(as), string(bs)), nil
		}
	}
	return 0, fmt.Errorf("values %T and %T have no defined ordering", a, b)
}

// numeric widens Int and Float to float64 for cross-kind comparison.
func numeric(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	default:
		return 0, false
	}
}
