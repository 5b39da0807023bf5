package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filtergate/internal/filter"
)

func testTable(t *testing.T) *FieldTable {
	t.Helper()
	status := EnumDef{
		Name: "UserStatus",
		Values: map[string]filter.Value{
			"active": filter.Int(1),
			"trial":  filter.Int(2),
			"banned": filter.Int(3),
		},
	}
	table, err := NewFieldTable([]FieldDescriptor{
		{Name: "age", Kind: Scalar(KindInt)},
		{Name: "status", Kind: EnumKind("UserStatus")},
		{Name: "tags", Kind: ArrayOf(KindString)},
		{Name: "fullName", Kind: Scalar(KindString)},
	}, []EnumDef{status})
	require.NoError(t, err)
	return table
}

func TestFieldTableLookup(t *testing.T) {
	table := testTable(t)

	d, ok := table.Field("age")
	require.True(t, ok)
	assert.Equal(t, KindInt, d.Kind.Scalar)

	_, ok = table.Field("missing")
	assert.False(t, ok)
}

func TestStorageColumnDefaultsToSnakeCase(t *testing.T) {
	table := testTable(t)
	d, _ := table.Field("fullName")
	assert.Equal(t, "full_name", d.StorageColumn())

	explicit := FieldDescriptor{Name: "fullName", Column: "display_name"}
	assert.Equal(t, "display_name", explicit.StorageColumn())
}

func TestNewFieldTableRejects(t *testing.T) {
	_, err := NewFieldTable([]FieldDescriptor{
		{Name: "a", Kind: Scalar(KindInt)},
		{Name: "a", Kind: Scalar(KindString)},
	}, nil)
	assert.Error(t, err, "duplicate field names")

	_, err = NewFieldTable([]FieldDescriptor{
		{Name: "s", Kind: EnumKind("Nope")},
	}, nil)
	assert.Error(t, err, "undefined enum reference")
}

func TestCoerceEnumScalar(t *testing.T) {
	table := testTable(t)
	d, _ := table.Field("status")

	v, err := table.CoerceValue(d, filter.String("active"))
	require.NoError(t, err)
	assert.Equal(t, filter.Int(1), v)

	_, err = table.CoerceValue(d, filter.String("ghost"))
	assert.Error(t, err, "unknown external value")
}

func TestCoerceEnumArrayElementwise(t *testing.T) {
	table := testTable(t)
	d, _ := table.Field("status")

	v, err := table.CoerceValue(d, filter.Array{filter.String("active"), filter.String("trial")})
	require.NoError(t, err)
	assert.Equal(t, filter.Array{filter.Int(1), filter.Int(2)}, v)
}

func TestCoerceNonEnumPassthrough(t *testing.T) {
	table := testTable(t)
	d, _ := table.Field("age")

	v, err := table.CoerceValue(d, filter.Int(30))
	require.NoError(t, err)
	assert.Equal(t, filter.Int(30), v)
}

func TestEnumNormalize(t *testing.T) {
	e := EnumDef{Name: "S", RawValues: map[string]any{"on": int64(1), "off": "0"}}
	require.NoError(t, e.Normalize())
	assert.Equal(t, filter.Int(1), e.Values["on"])
	assert.Equal(t, filter.String("0"), e.Values["off"])
}

func TestAuthorizedFieldSet(t *testing.T) {
	all := AllFields()
	assert.True(t, all.Allows("anything"))

	some := FieldsNamed("age", "status")
	assert.True(t, some.Allows("age"))
	assert.False(t, some.Allows("salary"))
}

func TestCustomRegistry(t *testing.T) {
	r := NewCustomRegistry()
	fn := func(q any, op filter.Operator, v filter.Value) (any, error) { return q, nil }

	require.NoError(t, r.Register("search", fn))
	assert.Error(t, r.Register("search", fn), "double registration")
	assert.Error(t, r.Register("nil", nil))

	_, ok := r.Lookup("search")
	assert.True(t, ok)
	_, ok = r.Lookup("other")
	assert.False(t, ok)
}
