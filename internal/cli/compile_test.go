package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchemaYAML = `fields:
  - name: id
    kind: int
  - name: age
    kind: int
  - name: status
    kind: enum:UserStatus
  - name: tags
    kind: "[]string"
  - name: name
    kind: string
enums:
  - name: UserStatus
    values:
      active: 1
      trial: 2
`

func writeTestSchema(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testSchemaYAML), 0o644))
	return path
}

func TestCompileTextOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{`{"age": {"_gte": 18}}`, "-s", writeTestSchema(t), "-b", "postgres"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "backend:   postgres")
	assert.Contains(t, buf.String(), "age >= $1")
}

func TestCompileJSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{`{"status": {"_eq": "active"}}`, "-s", writeTestSchema(t), "-b", "sqlite"})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "sqlite", data["backend"])
	assert.Equal(t, "status = ?", data["sql"])
	assert.Equal(t, []any{float64(1)}, data["args"], "enum coerced to its internal value")
	assert.NotEmpty(t, data["signature"])
}

func TestCompileMemoryBackend(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{`{"age": {"_gte": 18}}`, "-s", writeTestSchema(t)})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "(in-memory predicate)")
}

func TestCompileElasticBody(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{`{"tags": {"_includesAny": ["go"]}}`, "-s", writeTestSchema(t), "-b", "elasticsearch"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `"terms"`)
}

func TestCompileFilterFromFile(t *testing.T) {
	filterPath := filepath.Join(t.TempDir(), "filter.json")
	require.NoError(t, os.WriteFile(filterPath, []byte(`{"age": {"_lt": 30}}`), 0o644))

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"@" + filterPath, "-s", writeTestSchema(t), "-b", "mysql"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "age < ?")
}

func TestCompileFilterFromStdin(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetIn(bytes.NewBufferString(`{"age": {"_eq": 7}}`))
	cmd.SetArgs([]string{"-", "-s", writeTestSchema(t), "-b", "postgres"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "age = $1")
}

func TestCompileAuthorizationRefused(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{`{"age": {"_gte": 18}}`, "-s", writeTestSchema(t), "--authorized", "name"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_AUTHORIZATION", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "age")
}

func TestCompileCapabilityRefused(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{`{"name": {"_similar": "gopher"}}`, "-s", writeTestSchema(t), "-b", "memory"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_CAPABILITY", resp.Error.Code)
}

func TestCompileInvalidFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{`{"age": {"_max": 5}}`, "-s", writeTestSchema(t)})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid filter")
}

func TestCompileUnknownBackend(t *testing.T) {
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{`{"age": {"_eq": 1}}`, "-s", writeTestSchema(t), "-b", "oracle"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestCompileMissingSchemaFile(t *testing.T) {
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{`{"age": {"_eq": 1}}`, "-s", filepath.Join(t.TempDir(), "absent.yaml")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
