package compile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/filtergate/internal/filter"
	"github.com/roach88/filtergate/internal/schema"
)

// AuthorizationError reports leaves referencing fields outside the
// request's authorized set. It always names every offending field, and
// compilation never dispatches any part of the tree to the adapter
// when one is raised.
type AuthorizationError struct {
	Fields []string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not authorized to filter on: %s", strings.Join(e.Fields, ", "))
}

// CapabilityError reports an operator the selected adapter cannot
// express for a field's kind.
type CapabilityError struct {
	Field     string
	Op        filter.Operator
	Kind      schema.FieldKind
	AdapterID string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("adapter %s does not support %s on %s field %q",
		e.AdapterID, e.Op, e.Kind, e.Field)
}

// UnknownFieldError reports a leaf naming a field absent from the
// entity's descriptor table.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown filter field %q", e.Field)
}

// IsAuthorizationError reports whether err wraps an AuthorizationError.
func IsAuthorizationError(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}

// IsCapabilityError reports whether err wraps a CapabilityError.
func IsCapabilityError(err error) bool {
	var ce *CapabilityError
	return errors.As(err, &ce)
}
