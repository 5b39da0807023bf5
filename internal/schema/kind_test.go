package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	cases := map[string]string{
		"int":         "int",
		"string":      "string",
		"[]string":    "[string]",
		"enum:Status": "enum(Status)",
		"[]enum:Role": "[enum(Role)]",
		"[]float":     "[float]",
		"geo":         "geo",
	}
	for spec, want := range cases {
		kind, err := ParseKind(spec)
		require.NoError(t, err, spec)
		assert.Equal(t, want, kind.String())
	}

	for _, bad := range []string{"decimal", "enum:", "[]enum:", ""} {
		_, err := ParseKind(bad)
		assert.Error(t, err, bad)
	}
}
