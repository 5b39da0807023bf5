package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) Expr {
	t.Helper()
	expr, err := Parse([]byte(raw))
	require.NoError(t, err)
	return expr
}

func TestSignatureStable(t *testing.T) {
	a := mustParse(t, `{"age": {"_gte": 18}, "status": {"_eq": "active"}}`)
	// Same document, different key order and whitespace.
	b := mustParse(t, `{"status":{"_eq":"active"},"age":{"_gte":18}}`)

	assert.Equal(t, Signature(a, "memory"), Signature(b, "memory"))
}

func TestSignatureDiscriminates(t *testing.T) {
	base := mustParse(t, `{"age": {"_gte": 18}}`)

	tests := []struct {
		name  string
		other string
	}{
		{"different value", `{"age": {"_gte": 21}}`},
		{"different operator", `{"age": {"_gt": 18}}`},
		{"different field", `{"height": {"_gte": 18}}`},
		{"different shape", `{"_not": {"age": {"_gte": 18}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := mustParse(t, tt.other)
			assert.NotEqual(t, Signature(base, "memory"), Signature(other, "memory"))
		})
	}
}

func TestSignatureScopedToAdapter(t *testing.T) {
	expr := mustParse(t, `{"age": {"_gte": 18}}`)
	assert.NotEqual(t, Signature(expr, "postgres"), Signature(expr, "sqlite"))
}

func TestSignatureIntFloatDistinct(t *testing.T) {
	a := mustParse(t, `{"score": {"_eq": 1}}`)
	b := mustParse(t, `{"score": {"_eq": 1.0}}`)
	// "1" decodes as Int, "1.0" as Float; the two must hash apart.
	assert.NotEqual(t, Signature(a, "memory"), Signature(b, "memory"))
}
