package filter

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// DomainSignature is the domain prefix for filter signature hashing.
// The version suffix enables future algorithm migration.
const DomainSignature = "filtergate/signature/v1"

// Signature computes the structural signature of an expression scoped
// to one adapter: SHA-256 over a canonical rendering of the tree, with
// domain separation and the adapter identity mixed in. Two requests
// carrying the same filter against the same backend share a signature,
// which is what the complexity cache keys on.
//
// The rendering is deterministic by construction: Parse sorts object
// keys and leaf conditions, and canonicalExpr walks children in order.
func Signature(e Expr, adapterID string) string {
	var b strings.Builder
	canonicalExpr(&b, e)

	h := sha256.New()
	h.Write([]byte(DomainSignature))
	h.Write([]byte{0x00})
	h.Write([]byte(adapterID))
	h.Write([]byte{0x00})
	h.Write([]byte(b.String()))
	return hex.EncodeToString(h.Sum(nil))
}

func canonicalExpr(b *strings.Builder, e Expr) {
	switch node := e.(type) {
	case nil:
		b.WriteString("nil")
	case And:
		b.WriteString("and(")
		canonicalChildren(b, node.Children)
		b.WriteString(")")
	case Or:
		b.WriteString("or(")
		canonicalChildren(b, node.Children)
		b.WriteString(")")
	case Not:
		b.WriteString("not(")
		canonicalExpr(b, node.Child)
		b.WriteString(")")
	case Leaf:
		b.WriteString("leaf(")
		b.WriteString(strconv.Quote(node.Field))
		for _, c := range node.Conditions {
			b.WriteString(",")
			b.WriteString(string(c.Op))
			b.WriteString(":")
			canonicalValue(b, c.Value)
		}
		b.WriteString(")")
	}
}

func canonicalChildren(b *strings.Builder, children []Expr) {
	for i, c := range children {
		if i > 0 {
			b.WriteString(",")
		}
		canonicalExpr(b, c)
	}
}

// canonicalValue renders a value unambiguously. Floats use the 'g'
// format with full precision so distinct floats never collide; strings
// are quoted so delimiters inside them cannot break framing.
func canonicalValue(b *strings.Builder, v Value) {
	switch val := v.(type) {
	case Null:
		b.WriteString("null")
	case String:
		b.WriteString(strconv.Quote(string(val)))
	case Int:
		fmt.Fprintf(b, "i%d", int64(val))
	case Float:
		fmt.Fprintf(b, "f%s", strconv.FormatFloat(float64(val), 'g', -1, 64))
	case Bool:
		fmt.Fprintf(b, "%t", bool(val))
	case Array:
		b.WriteString("[")
		for i, elem := range val {
			if i > 0 {
				b.WriteString(",")
			}
			canonicalValue(b, elem)
		}
		b.WriteString("]")
	}
}
