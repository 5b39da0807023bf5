package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualCrossNumeric(t *testing.T) {
	assert.True(t, Equal(Int(3), Float(3.0)))
	assert.True(t, Equal(Float(3.0), Int(3)))
	assert.False(t, Equal(Int(3), Float(3.5)))
	assert.False(t, Equal(Int(3), String("3")))
}

func TestEqualArrays(t *testing.T) {
	a := Array{String("x"), Int(1)}
	b := Array{String("x"), Float(1)}
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, Array{String("x")}))
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"int lt", Int(1), Int(2), -1},
		{"int float mixed", Int(2), Float(1.5), 1},
		{"equal cross kind", Float(2), Int(2), 0},
		{"strings", String("abc"), String("abd"), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareUnordered(t *testing.T) {
	_, err := Compare(Bool(true), Bool(false))
	assert.Error(t, err)
	_, err = Compare(String("a"), Int(1))
	assert.Error(t, err)
}

func TestNative(t *testing.T) {
	assert.Nil(t, Native(Null{}))
	assert.Equal(t, int64(5), Native(Int(5)))
	assert.Equal(t, []any{"a", int64(1)}, Native(Array{String("a"), Int(1)}))
}
