package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Combinator keys recognized at any object level of the wire form.
const (
	keyAnd = "_and"
	keyOr  = "_or"
	keyNot = "_not"
)

// ValidationError describes a structural defect in a raw filter
// document. Path locates the defect in the tree, e.g. "_and[1].status".
type ValidationError struct {
	Code    string
	Path    string
	Message string
}

// Structural error codes.
const (
	ErrCodeUnknownCombinator = "UNKNOWN_COMBINATOR"
	ErrCodeUnknownOperator   = "UNKNOWN_OPERATOR"
	ErrCodeEmptyField        = "EMPTY_FIELD"
	ErrCodeMalformed         = "MALFORMED"
)

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s at %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Parse decodes the JSON wire form of a filter into an expression tree.
//
// The wire form is an object whose keys are either combinators (_and,
// _or, _not) or field names mapping to operator objects:
//
//	{"_and": [
//	  {"age": {"_gte": 18}},
//	  {"_or": [{"status": {"_eq": "active"}}, {"status": {"_eq": "trial"}}]}
//	]}
//
// Multiple keys in one object are implicitly ANDed. Parse checks
// structure only: known combinators, known operator symbols, non-empty
// field names. All structural defects are collected and returned
// together rather than one at a time.
func Parse(raw []byte) (Expr, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, &ValidationError{Code: ErrCodeMalformed, Message: err.Error()}
	}

	p := &parser{}
	expr := p.parseObject(doc, "")
	if p.errs != nil {
		return nil, p.errs.ErrorOrNil()
	}
	return expr, nil
}

type parser struct {
	errs *multierror.Error
}

func (p *parser) fail(code, path, format string, args ...any) {
	p.errs = multierror.Append(p.errs, &ValidationError{
		Code:    code,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	})
}

// parseObject handles one object level: combinator keys plus leaf
// fields. Keys are visited in sorted order so the resulting tree, and
// everything compiled from it, is deterministic.
func (p *parser) parseObject(doc map[string]any, path string) Expr {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []Expr
	for _, key := range keys {
		childPath := joinPath(path, key)
		switch key {
		case keyAnd:
			children := p.parseList(doc[key], childPath)
			parts = append(parts, And{Children: children})
		case keyOr:
			children := p.parseList(doc[key], childPath)
			parts = append(parts, Or{Children: children})
		case keyNot:
			child, ok := doc[key].(map[string]any)
			if !ok {
				p.fail(ErrCodeMalformed, childPath, "_not expects an object, got %T", doc[key])
				continue
			}
			parts = append(parts, Not{Child: p.parseObject(child, childPath)})
		default:
			if strings.HasPrefix(key, "_") {
				p.fail(ErrCodeUnknownCombinator, childPath, "unknown combinator %q", key)
				continue
			}
			if leaf, ok := p.parseLeaf(key, doc[key], childPath); ok {
				parts = append(parts, leaf)
			}
		}
	}

	switch len(parts) {
	case 0:
		if p.errs == nil {
			p.fail(ErrCodeMalformed, path, "empty filter object")
		}
		return nil
	case 1:
		return parts[0]
	default:
		// Sibling keys are implicitly ANDed.
		return And{Children: parts}
	}
}

func (p *parser) parseList(v any, path string) []Expr {
	list, ok := v.([]any)
	if !ok {
		p.fail(ErrCodeMalformed, path, "combinator expects an array, got %T", v)
		return nil
	}
	children := make([]Expr, 0, len(list))
	for i, elem := range list {
		elemPath := fmt.Sprintf("%s[%d]", path, i)
		obj, ok := elem.(map[string]any)
		if !ok {
			p.fail(ErrCodeMalformed, elemPath, "expected an object, got %T", elem)
			continue
		}
		if child := p.parseObject(obj, elemPath); child != nil {
			children = append(children, child)
		}
	}
	return children
}

func (p *parser) parseLeaf(field string, v any, path string) (Leaf, bool) {
	if strings.TrimSpace(field) == "" {
		p.fail(ErrCodeEmptyField, path, "leaf with no field name")
		return Leaf{}, false
	}
	opsObj, ok := v.(map[string]any)
	if !ok {
		p.fail(ErrCodeMalformed, path, "field %q expects an operator object, got %T", field, v)
		return Leaf{}, false
	}
	if len(opsObj) == 0 {
		p.fail(ErrCodeMalformed, path, "field %q has no operators", field)
		return Leaf{}, false
	}

	symbols := make([]string, 0, len(opsObj))
	for sym := range opsObj {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	conds := make([]Condition, 0, len(symbols))
	for _, sym := range symbols {
		op := Operator(sym)
		if !Known(op) {
			p.fail(ErrCodeUnknownOperator, joinPath(path, sym), "unknown operator symbol %q", sym)
			continue
		}
		val, err := FromJSON(opsObj[sym])
		if err != nil {
			p.fail(ErrCodeMalformed, joinPath(path, sym), "operand: %v", err)
			continue
		}
		conds = append(conds, Condition{Op: op, Value: val})
	}
	if len(conds) == 0 {
		return Leaf{}, false
	}
	return Leaf{Field: field, Conditions: conds}, true
}

func joinPath(base, elem string) string {
	if base == "" {
		return elem
	}
	return base + "." + elem
}
