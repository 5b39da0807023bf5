// Package compile walks a filter expression tree and produces a
// backend query through the selected adapter.
//
// Compilation is pure: no I/O, no shared state, deterministic output
// for identical inputs. Authorization is checked for the whole tree
// before any predicate reaches an adapter, so an unauthorized request
// can never leak work to the backend.
package compile

import (
	"fmt"
	"sort"

	"github.com/roach88/filtergate/internal/adapter"
	"github.com/roach88/filtergate/internal/filter"
	"github.com/roach88/filtergate/internal/schema"
)

// Option adjusts compilation.
type Option func(*options)

type options struct {
	custom *schema.CustomRegistry
	apply  adapter.ApplyOptions
}

// WithCustomFilters supplies the registry consulted for fields marked
// Custom in the descriptor table.
func WithCustomFilters(r *schema.CustomRegistry) Option {
	return func(o *options) { o.custom = r }
}

// WithFold requests case-insensitive text matching.
func WithFold() Option {
	return func(o *options) { o.apply.Fold = true }
}

// Compile translates an expression tree into the adapter's compiled
// query form.
func Compile(expr filter.Expr, fields *schema.FieldTable, authorized schema.AuthorizedFieldSet, adp adapter.Adapter, opts ...Option) (adapter.CompiledQuery, error) {
	if expr == nil {
		return nil, fmt.Errorf("nil filter expression")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := checkAuthorization(expr, authorized); err != nil {
		return nil, err
	}

	c := &compiler{fields: fields, adapter: adp, opts: o}
	return c.compile(expr)
}

// checkAuthorization walks every leaf up front and reports all
// offending fields in one error.
func checkAuthorization(expr filter.Expr, authorized schema.AuthorizedFieldSet) error {
	if authorized.All() {
		return nil
	}
	denied := map[string]struct{}{}
	for _, leaf := range filter.Leaves(expr) {
		if !authorized.Allows(leaf.Field) {
			denied[leaf.Field] = struct{}{}
		}
	}
	if len(denied) == 0 {
		return nil
	}
	fields := make([]string, 0, len(denied))
	for f := range denied {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return &AuthorizationError{Fields: fields}
}

type compiler struct {
	fields  *schema.FieldTable
	adapter adapter.Adapter
	opts    options
}

func (c *compiler) compile(expr filter.Expr) (adapter.CompiledQuery, error) {
	switch node := expr.(type) {
	case filter.And:
		parts, err := c.compileChildren(node.Children)
		if err != nil {
			return nil, err
		}
		return c.adapter.CombineAnd(parts)
	case filter.Or:
		parts, err := c.compileChildren(node.Children)
		if err != nil {
			return nil, err
		}
		return c.adapter.CombineOr(parts)
	case filter.Not:
		child, err := c.compile(node.Child)
		if err != nil {
			return nil, err
		}
		return c.adapter.Negate(child)
	case filter.Leaf:
		return c.compileLeaf(node)
	default:
		return nil, fmt.Errorf("unsupported expression node %T", expr)
	}
}

func (c *compiler) compileChildren(children []filter.Expr) ([]adapter.CompiledQuery, error) {
	parts := make([]adapter.CompiledQuery, 0, len(children))
	for _, child := range children {
		q, err := c.compile(child)
		if err != nil {
			return nil, err
		}
		parts = append(parts, q)
	}
	return parts, nil
}

// compileLeaf folds the leaf's conditions into a conjunction of
// single-operator adapter calls. Custom fields bypass the adapter
// entirely: the registered function owns the whole leaf.
func (c *compiler) compileLeaf(leaf filter.Leaf) (adapter.CompiledQuery, error) {
	desc, ok := c.fields.Field(leaf.Field)
	if !ok {
		return nil, &UnknownFieldError{Field: leaf.Field}
	}

	if desc.Custom {
		return c.compileCustom(desc, leaf)
	}

	caps := c.adapter.Capabilities()
	parts := make([]adapter.CompiledQuery, 0, len(leaf.Conditions))
	for _, cond := range leaf.Conditions {
		if !caps.Supports(cond.Op, desc.Kind) {
			return nil, &CapabilityError{
				Field:     leaf.Field,
				Op:        cond.Op,
				Kind:      desc.Kind,
				AdapterID: c.adapter.ID(),
			}
		}
		value, err := c.fields.CoerceValue(desc, cond.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", leaf.Field, err)
		}
		q, err := c.adapter.ApplyOperator(nil, desc, cond.Op, value, c.opts.apply)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", leaf.Field, err)
		}
		parts = append(parts, q)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return c.adapter.CombineAnd(parts)
}

func (c *compiler) compileCustom(desc schema.FieldDescriptor, leaf filter.Leaf) (adapter.CompiledQuery, error) {
	fn, ok := c.opts.custom.Lookup(desc.Name)
	if !ok {
		return nil, fmt.Errorf("field %q is custom but no filter function is registered", desc.Name)
	}
	var q adapter.CompiledQuery
	for _, cond := range leaf.Conditions {
		next, err := fn(q, cond.Op, cond.Value)
		if err != nil {
			return nil, fmt.Errorf("custom filter %q: %w", desc.Name, err)
		}
		q = next
	}
	return q, nil
}
