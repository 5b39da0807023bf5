package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			ids, err := Run(s)
			if s.ExpectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), s.ExpectError)
				return
			}
			require.NoError(t, err)
			if len(s.ExpectIDs) == 0 {
				assert.Empty(t, ids)
				return
			}
			assert.Equal(t, s.ExpectIDs, ids)
		})
	}
}

func TestLoadScenarioRejectsConflictingExpectations(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/basic_comparison.yaml")
	require.NoError(t, err)

	s := &Scenario{
		Name:      "bad",
		Filter:    `{"a": {"_eq": 1}}`,
		Fields:    []FieldSpec{{Name: "a", Kind: "int"}},
		ExpectIDs: []int64{1},
	}
	s.ExpectError = "boom"
	assert.Error(t, s.validate())
}

func TestFieldTableFromSpecs(t *testing.T) {
	s := &Scenario{
		Name:   "kinds",
		Filter: `{"roles": {"_includes": "admin"}}`,
		Fields: []FieldSpec{
			{Name: "age", Kind: "int"},
			{Name: "roles", Kind: "[]enum:Role"},
		},
		Enums: []EnumSpec{{Name: "Role", Values: map[string]any{"admin": 1}}},
	}
	table, err := s.FieldTable()
	require.NoError(t, err)

	desc, ok := table.Field("roles")
	require.True(t, ok)
	assert.Equal(t, "[enum(Role)]", desc.Kind.String())

	s.Fields[0].Kind = "decimal"
	_, err = s.FieldTable()
	assert.Error(t, err)
}
